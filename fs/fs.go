// Package fs provides a simple interface for the storage locations that
// collected downloads are moved into.
package fs

import (
	"errors"
	"io"
	"os"
	"time"
)

// ErrNotExist is returned by Stat and Open for paths that don't exist on the
// filesystem.
var ErrNotExist = errors.New("file does not exist")

// FileInfo describes a file and is returned by Stat and List.
type FileInfo interface {
	// Name returns the name of the file, relative to the filesystem base.
	Name() string

	// Size reports the size of the file in bytes.
	Size() int64

	// ModTime returns the time of last modification.
	ModTime() time.Time

	// IsDir returns whether the file represents a directory.
	IsDir() bool
}

// File provides read access to a single file.
type File interface {
	io.ReadCloser

	// Name returns the name of the file.
	Name() string

	// Stat returns the FileInfo for this file.
	Stat() (FileInfo, error)
}

// Filesystem is a storage location for finalized files. Paths are always
// interpreted relative to the filesystem base.
type Filesystem interface {
	// Name returns the name of this filesystem instance.
	Name() string

	// Type returns the type of the filesystem, e.g. disk, mem, s3.
	Type() string

	// Base returns the base the filesystem is rooted at, e.g. a directory
	// path or a bucket name.
	Base() string

	// Stat returns info about the file at path. ErrNotExist is returned if
	// the path doesn't exist.
	Stat(path string) (FileInfo, error)

	// List returns the files under path whose names match the glob pattern.
	// An empty pattern matches everything.
	List(path, pattern string) ([]FileInfo, error)

	// Open returns the file stored at the given path for reading.
	Open(path string) (File, error)

	// Store writes the contents of r to path. The write is atomic from an
	// observer's perspective: the file appears complete at path or not at
	// all. Returns the number of bytes stored.
	Store(path string, r io.Reader) (int64, error)

	// Remove removes a file at the given path.
	Remove(path string) error

	// MkdirAll creates a directory named path along with any necessary
	// parents. Filesystems without directories treat this as a no-op.
	MkdirAll(path string, perm os.FileMode) error
}
