package nanofs

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/paulino/nanofs-fuse/filesystem"
)

// File is an open handle to a NanoFS node, satisfying
// filesystem.File. Its cursor is independent of the underlying node: two
// Files opened on the same path track position separately, same as two
// *os.File handles on the same path.
type File struct {
	fs     *FileSystem
	handle *Handle
	path   string
	flag   int
	pos    int64
}

var _ filesystem.File = (*File)(nil)

// Stat returns the node's size and directory bit.
func (f *File) Stat() (fs.FileInfo, error) {
	return f.fs.infoFor(f.handle)
}

// Read reads from the current cursor position and advances it.
func (f *File) Read(p []byte) (int, error) {
	if f.handle.IsDir() {
		return 0, fmt.Errorf("%w: %q is a directory", filesystem.ErrNotSupported, f.path)
	}
	n, err := f.fs.read(f.handle, p, f.pos)
	f.pos += int64(n)
	if err == nil && n == 0 && len(p) > 0 {
		err = io.EOF
	}
	return n, err
}

// Write writes at the current cursor position and advances it, the same
// O_APPEND-free semantics as os.File.Write: the cursor, not the file's
// end, decides where bytes land (spec §4.5 phase A/B).
func (f *File) Write(p []byte) (int, error) {
	if f.handle.IsDir() {
		return 0, fmt.Errorf("%w: %q is a directory", filesystem.ErrNotSupported, f.path)
	}
	if f.flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return 0, fmt.Errorf("%w: %q was not opened for writing", ErrInvalid, f.path)
	}
	n, err := f.fs.write(f.handle, p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek repositions the cursor; it never validates the new position
// against the file's current size, the same way lseek(2) allows seeking
// past end-of-file.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		size, err := f.fs.fileSize(f.handle)
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalid, whence)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, fmt.Errorf("%w: negative seek position", ErrInvalid)
	}
	f.pos = newPos
	return f.pos, nil
}

// ReadDir lists the node's children when it is a directory; it errors on
// a regular file handle. n<=0 returns the whole listing, matching
// fs.ReadDirFile's contract for os.File.
func (f *File) ReadDir(n int) ([]fs.DirEntry, error) {
	if !f.handle.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", filesystem.ErrNotSupported, f.path)
	}
	children, err := f.fs.list(f.handle)
	if err != nil {
		return nil, err
	}
	var out []fs.DirEntry
	for _, c := range children {
		info, err := f.fs.infoFor(&c)
		if err != nil {
			return nil, err
		}
		out = append(out, &nodeDirEntry{info: info})
	}
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// Close is a no-op: NanoFS has no per-handle OS resources to release,
// every read and write goes straight through to the device handle.
func (f *File) Close() error {
	return nil
}
