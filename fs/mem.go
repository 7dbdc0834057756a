package fs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sbfi/knimekit/glob"
)

// MemConfig is the config required to create a new memory filesystem.
type MemConfig struct {
	// Name of this filesystem instance, optional.
	Name string
}

type memFile struct {
	data    []byte
	modTime time.Time
}

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return fi.size }
func (fi *memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *memFileInfo) IsDir() bool        { return false }

type memFileHandle struct {
	name   string
	reader *bytes.Reader
	info   *memFileInfo
}

func (f *memFileHandle) Name() string               { return f.name }
func (f *memFileHandle) Stat() (FileInfo, error)    { return f.info, nil }
func (f *memFileHandle) Read(p []byte) (int, error) { return f.reader.Read(p) }
func (f *memFileHandle) Close() error               { return nil }

// memFilesystem implements the Filesystem interface in memory. It is meant
// for tests and dry runs.
type memFilesystem struct {
	name string

	lock  sync.RWMutex
	files map[string]*memFile
}

// NewMemFilesystem returns a new filesystem that keeps all files in memory.
func NewMemFilesystem(config MemConfig) (Filesystem, error) {
	return &memFilesystem{
		name:  config.Name,
		files: map[string]*memFile{},
	}, nil
}

func (fs *memFilesystem) Name() string { return fs.name }
func (fs *memFilesystem) Type() string { return "mem" }
func (fs *memFilesystem) Base() string { return "/" }

func clean(path string) string {
	return filepath.Clean("/" + path)
}

func (fs *memFilesystem) Stat(path string) (FileInfo, error) {
	path = clean(path)

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	file, ok := fs.files[path]
	if !ok {
		return nil, ErrNotExist
	}

	return &memFileInfo{
		name:    path,
		size:    int64(len(file.data)),
		modTime: file.modTime,
	}, nil
}

func (fs *memFilesystem) List(path, pattern string) ([]FileInfo, error) {
	dir := clean(path)

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	files := []FileInfo{}

	for name, file := range fs.files {
		if filepath.Dir(name) != dir {
			continue
		}

		if len(pattern) != 0 {
			if ok, _ := glob.Match(pattern, filepath.Base(name)); !ok {
				continue
			}
		}

		files = append(files, &memFileInfo{
			name:    name,
			size:    int64(len(file.data)),
			modTime: file.modTime,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	return files, nil
}

func (fs *memFilesystem) Open(path string) (File, error) {
	path = clean(path)

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	file, ok := fs.files[path]
	if !ok {
		return nil, ErrNotExist
	}

	return &memFileHandle{
		name:   path,
		reader: bytes.NewReader(file.data),
		info: &memFileInfo{
			name:    path,
			size:    int64(len(file.data)),
			modTime: file.modTime,
		},
	}, nil
}

func (fs *memFilesystem) Store(path string, r io.Reader) (int64, error) {
	path = clean(path)

	data, err := io.ReadAll(r)
	if err != nil {
		return -1, fmt.Errorf("reading data failed: %w", err)
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.files[path] = &memFile{
		data:    data,
		modTime: time.Now(),
	}

	return int64(len(data)), nil
}

func (fs *memFilesystem) Remove(path string) error {
	path = clean(path)

	fs.lock.Lock()
	defer fs.lock.Unlock()

	if _, ok := fs.files[path]; !ok {
		return ErrNotExist
	}

	delete(fs.files, path)

	return nil
}

func (fs *memFilesystem) MkdirAll(path string, perm os.FileMode) error {
	return nil
}
