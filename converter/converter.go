// Package converter adapts a filesystem.FileSystem to the standard
// library's io/fs.FS, so anything that already knows how to walk an
// fs.FS (fs.WalkDir, fs.Glob, http.FileServer) works against a mounted
// NanoFS image without depending on the engine package directly.
package converter

import (
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/paulino/nanofs-fuse/filesystem"
)

type fsCompatible struct {
	filesystem.FileSystem
}

type fsFileWrapper struct {
	filesystem.File
	stat *os.FileInfo
}

func (f *fsFileWrapper) Stat() (fs.FileInfo, error) {
	if f.stat == nil {
		return nil, fs.ErrInvalid
	}
	return *f.stat, nil
}

// rootInfo is a synthetic fs.FileInfo for the mount root: unlike every
// other node, the root has no parent directory listing to find its own
// entry in, so Open synthesizes this instead of searching for it.
type rootInfo struct{}

func (rootInfo) Name() string       { return "." }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() os.FileMode  { return os.ModeDir | 0o777 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() interface{}   { return nil }

// toAbsolute maps an io/fs-style relative path ("." for the root,
// "dir/file" with no leading slash) to the absolute, slash-rooted paths
// filesystem.FileSystem expects.
func toAbsolute(name string) string {
	if name == "." {
		return "/"
	}
	return "/" + name
}

func (f *fsCompatible) Open(name string) (fs.File, error) {
	file, err := f.OpenFile(toAbsolute(name), os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	if name == "." {
		var stat os.FileInfo = rootInfo{}
		return &fsFileWrapper{File: file, stat: &stat}, nil
	}
	dirname := path.Dir(name)
	var stat *os.FileInfo
	if info, err := f.FileSystem.ReadDir(toAbsolute(dirname)); err == nil {
		for i := range info {
			if info[i].Name() == path.Base(name) {
				stat = &info[i]
			}
		}
	}
	return &fsFileWrapper{File: file, stat: stat}, nil
}

// ReadDir implements fs.ReadDirFS, translating filesystem.FileSystem's
// []os.FileInfo listing into the []fs.DirEntry shape io/fs callers
// expect.
func (f *fsCompatible) ReadDir(name string) ([]fs.DirEntry, error) {
	info, err := f.FileSystem.ReadDir(toAbsolute(name))
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, len(info))
	for i, fi := range info {
		entries[i] = fs.FileInfoToDirEntry(fi)
	}
	return entries, nil
}

// FS wraps f as an io/fs.FS.
func FS(f filesystem.FileSystem) fs.FS {
	return &fsCompatible{f}
}
