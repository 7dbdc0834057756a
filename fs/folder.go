package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidArgument is returned for empty or unusable paths. It signals a
// caller logic error, not a filesystem failure.
var ErrInvalidArgument = errors.New("invalid argument")

// EnsureDir makes sure the directory at path exists. If it doesn't exist it
// is created including all parents. If it exists and clear is true, every
// file and subdirectory beneath it is removed, the directory itself stays.
// Prior contents are unrecoverable after a clearing call.
//
// An existing non-directory at path or an empty path fail with
// ErrInvalidArgument. Filesystem errors are surfaced unmodified.
func EnsureDir(path string, clear bool) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidArgument)
	}

	finfo, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}

		return os.MkdirAll(path, 0755)
	}

	if !finfo.IsDir() {
		return fmt.Errorf("%w: '%s' is not a directory", ErrInvalidArgument, path)
	}

	if !clear {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}
