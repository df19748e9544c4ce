package nanofs

import (
	"fmt"
	"os"

	"github.com/paulino/nanofs-fuse/filesystem"
)

var _ filesystem.FileSystem = (*FileSystem)(nil)

// Mkdir creates a directory at pathname (spec §4.4).
func (fs *FileSystem) Mkdir(pathname string) error {
	_, err := fs.create(pathname, true)
	return err
}

// Mknod is not supported: NanoFS has no device-special-file or named-pipe
// concept, only plain files and directories (spec non-goals).
func (fs *FileSystem) Mknod(pathname string, mode uint32, dev int) error {
	return fmt.Errorf("%w: device and pipe nodes", filesystem.ErrNotSupported)
}

// Link is not supported: every NanoFS node has exactly one parent, the
// sibling chain it is linked into at creation (spec non-goals, no hard
// links).
func (fs *FileSystem) Link(oldpath, newpath string) error {
	return fmt.Errorf("%w: hard links", filesystem.ErrNotSupported)
}

// Symlink is not supported: NanoFS has no symlink flag or target-storage
// convention (spec non-goals).
func (fs *FileSystem) Symlink(oldpath, newpath string) error {
	return fmt.Errorf("%w: symbolic links", filesystem.ErrNotSupported)
}

// Chmod is not supported: NanoFS stores no permission bits per node
// (spec non-goals).
func (fs *FileSystem) Chmod(name string, mode os.FileMode) error {
	return fmt.Errorf("%w: permission bits", filesystem.ErrNotSupported)
}

// Chown is not supported: NanoFS stores no ownership per node (spec
// non-goals).
func (fs *FileSystem) Chown(name string, uid, gid int) error {
	return fmt.Errorf("%w: ownership", filesystem.ErrNotSupported)
}

// Rename is not supported: moving a node across the tree, or within the
// same directory, has no primitive in the spec; every create/remove
// operates by full path and the format has no in-place way to relink a
// node under a different parent without walking and rewriting both
// parents' sibling chains, which spec §4.4 never describes.
func (fs *FileSystem) Rename(oldpath, newpath string) error {
	return fmt.Errorf("%w: rename", filesystem.ErrNotSupported)
}

// Remove removes the named file or directory (spec §4.4). It does not
// check that a directory is empty before removing it (spec §9).
func (fs *FileSystem) Remove(pathname string) error {
	return fs.remove(pathname)
}

// ReadDir reads the contents of a directory.
func (fs *FileSystem) ReadDir(pathname string) ([]os.FileInfo, error) {
	h, err := fs.resolve(pathname)
	if err != nil {
		return nil, err
	}
	if !h.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrInvalid, pathname)
	}
	children, err := fs.list(h)
	if err != nil {
		return nil, err
	}
	out := make([]os.FileInfo, 0, len(children))
	for _, c := range children {
		info, err := fs.infoFor(&c)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// OpenFile opens a handle to pathname. O_CREATE creates a regular file
// if it does not already exist; O_CREATE|O_EXCL fails if it does.
// O_TRUNC truncates an existing regular file to zero length.
func (fs *FileSystem) OpenFile(pathname string, flag int) (filesystem.File, error) {
	h, err := fs.resolve(pathname)
	if err != nil {
		if err != ErrNotFound || flag&os.O_CREATE == 0 {
			return nil, err
		}
		h, err = fs.create(pathname, false)
		if err != nil {
			return nil, err
		}
	} else if flag&(os.O_CREATE|os.O_EXCL) == (os.O_CREATE | os.O_EXCL) {
		return nil, ErrAlreadyExists
	}

	if flag&os.O_TRUNC != 0 && !h.IsDir() {
		if err := fs.truncate(h, 0); err != nil {
			return nil, err
		}
	}

	f := &File{fs: fs, handle: h, path: pathname, flag: flag}
	if flag&os.O_APPEND != 0 && !h.IsDir() {
		size, err := fs.fileSize(h)
		if err != nil {
			return nil, err
		}
		f.pos = size
	}
	return f, nil
}
