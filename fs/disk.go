package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sbfi/knimekit/glob"
	"github.com/sbfi/knimekit/log"

	gopsdisk "github.com/shirou/gopsutil/v3/disk"
)

// DiskConfig is the config required to create a new disk filesystem.
type DiskConfig struct {
	// Name of this filesystem instance, optional.
	Name string

	// Root is the directory the filesystem is rooted at. It is created if
	// it doesn't exist.
	Root string

	// For logging, optional.
	Logger log.Logger
}

// diskFileInfo implements the FileInfo interface.
type diskFileInfo struct {
	name  string
	finfo os.FileInfo
}

func (fi *diskFileInfo) Name() string       { return fi.name }
func (fi *diskFileInfo) Size() int64        { return fi.finfo.Size() }
func (fi *diskFileInfo) ModTime() time.Time { return fi.finfo.ModTime() }
func (fi *diskFileInfo) IsDir() bool        { return fi.finfo.IsDir() }

// diskFile implements the File interface.
type diskFile struct {
	name string
	file *os.File
}

func (f *diskFile) Name() string { return f.name }

func (f *diskFile) Stat() (FileInfo, error) {
	finfo, err := f.file.Stat()
	if err != nil {
		return nil, err
	}

	return &diskFileInfo{name: f.name, finfo: finfo}, nil
}

func (f *diskFile) Read(p []byte) (int, error) { return f.file.Read(p) }
func (f *diskFile) Close() error               { return f.file.Close() }

// diskFilesystem implements the Filesystem interface on a rooted directory.
type diskFilesystem struct {
	name string
	root string

	logger log.Logger
}

// NewDiskFilesystem returns a new filesystem that is backed by a directory
// on disk. The root directory is created if necessary.
func NewDiskFilesystem(config DiskConfig) (Filesystem, error) {
	if len(config.Root) == 0 {
		return nil, fmt.Errorf("no root directory provided")
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory failed: %w", err)
	}

	finfo, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !finfo.IsDir() {
		return nil, fmt.Errorf("the provided root '%s' must be a directory", config.Root)
	}

	fs := &diskFilesystem{
		name:   config.Name,
		root:   root,
		logger: config.Logger,
	}

	if fs.logger == nil {
		fs.logger = log.New("")
	}

	fs.logger = fs.logger.WithField("type", "disk")

	return fs, nil
}

func (fs *diskFilesystem) Name() string { return fs.name }
func (fs *diskFilesystem) Type() string { return "disk" }
func (fs *diskFilesystem) Base() string { return fs.root }

// resolve maps a filesystem path to an absolute path under the root. A
// leading slash is forced before cleaning so the path can't escape the root.
func (fs *diskFilesystem) resolve(path string) string {
	return filepath.Join(fs.root, filepath.Clean("/"+path))
}

func (fs *diskFilesystem) Stat(path string) (FileInfo, error) {
	name := filepath.Clean("/" + path)

	finfo, err := os.Stat(fs.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}

		return nil, err
	}

	return &diskFileInfo{name: name, finfo: finfo}, nil
}

func (fs *diskFilesystem) List(path, pattern string) ([]FileInfo, error) {
	dir := fs.resolve(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := []FileInfo{}

	for _, entry := range entries {
		if len(pattern) != 0 {
			if ok, _ := glob.Match(pattern, entry.Name()); !ok {
				continue
			}
		}

		finfo, err := entry.Info()
		if err != nil {
			continue
		}

		name := filepath.Clean("/" + filepath.Join(path, entry.Name()))

		files = append(files, &diskFileInfo{name: name, finfo: finfo})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	return files, nil
}

func (fs *diskFilesystem) Open(path string) (File, error) {
	name := filepath.Clean("/" + path)

	f, err := os.Open(fs.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}

		return nil, err
	}

	return &diskFile{name: name, file: f}, nil
}

// Store writes to a temporary file next to the target and renames it into
// place. Other observers never see a partially written file.
func (fs *diskFilesystem) Store(path string, r io.Reader) (int64, error) {
	target := fs.resolve(path)

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return -1, fmt.Errorf("creating target directory failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return -1, fmt.Errorf("creating temporary file failed: %w", err)
	}

	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return -1, fmt.Errorf("writing data failed: %w", err)
	}

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return -1, err
	}

	if err := tmp.Close(); err != nil {
		return -1, err
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return -1, fmt.Errorf("moving file into place failed: %w", err)
	}

	fs.logger.Debug().WithField("path", path).Log("stored %d bytes", size)

	return size, nil
}

func (fs *diskFilesystem) Remove(path string) error {
	if err := os.Remove(fs.resolve(path)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}

		return err
	}

	return nil
}

func (fs *diskFilesystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(fs.resolve(path), perm)
}

// Free returns the number of available bytes on the volume the filesystem
// is rooted at.
func (fs *diskFilesystem) Free() (uint64, error) {
	usage, err := gopsdisk.Usage(fs.root)
	if err != nil {
		return 0, err
	}

	return usage.Free, nil
}
