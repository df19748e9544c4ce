package nanofs

import (
	"io/fs"
	"time"
)

// nodeInfo adapts a directory entry to os.FileInfo/fs.FileInfo. NanoFS
// stores no mode bits or timestamps (spec §3, Non-goals), so Mode only
// ever reports the directory bit and ModTime is always the zero time.
type nodeInfo struct {
	name  string
	isDir bool
	size  int64
}

func (i *nodeInfo) Name() string { return i.name }
func (i *nodeInfo) Size() int64  { return i.size }

func (i *nodeInfo) Mode() fs.FileMode {
	if i.isDir {
		return fs.ModeDir | 0o777
	}
	return 0o666
}

func (i *nodeInfo) ModTime() time.Time { return time.Time{} }
func (i *nodeInfo) IsDir() bool        { return i.isDir }
func (i *nodeInfo) Sys() interface{}   { return nil }

// nodeDirEntry adapts a directory entry to fs.DirEntry, for File.ReadDir.
type nodeDirEntry struct {
	info *nodeInfo
}

func (e *nodeDirEntry) Name() string               { return e.info.name }
func (e *nodeDirEntry) IsDir() bool                { return e.info.isDir }
func (e *nodeDirEntry) Type() fs.FileMode           { return e.info.Mode().Type() }
func (e *nodeDirEntry) Info() (fs.FileInfo, error)  { return e.info, nil }

func (fs *FileSystem) infoFor(h *Handle) (*nodeInfo, error) {
	info := &nodeInfo{name: h.Node.FName, isDir: h.IsDir()}
	if !info.isDir {
		size, err := fs.fileSize(h)
		if err != nil {
			return nil, err
		}
		info.size = size
	}
	return info, nil
}
