// Package testhelper provides stand-ins for backend.Storage so engine
// tests can exercise NanoFS images without touching the real filesystem.
package testhelper

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/paulino/nanofs-fuse/backend"
)

// FileImpl is an in-memory backend.Storage: a fixed-size byte buffer with
// a single cursor, used by filesystem/nanofs's tests in place of a real
// temp file wherever a test doesn't need to exercise actual disk I/O.
type FileImpl struct {
	data []byte
	pos  int64
}

var _ backend.Storage = (*FileImpl)(nil)

// NewFileImpl allocates an all-zero in-memory image of size bytes.
func NewFileImpl(size int64) *FileImpl {
	return &FileImpl{data: make([]byte, size)}
}

func (f *FileImpl) Stat() (fs.FileInfo, error) {
	return fileImplInfo{size: int64(len(f.data))}, nil
}

func (f *FileImpl) Read(b []byte) (int, error) {
	n, err := f.ReadAt(b, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *FileImpl) Close() error { return nil }

// ReadAt reads at a particular offset.
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	if offset < 0 || offset > int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(b, f.data[offset:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes at a particular offset.
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.New("testhelper: negative write offset")
	}
	end := offset + int64(len(b))
	if end > int64(len(f.data)) {
		return 0, errors.New("testhelper: write past end of fixed-size image")
	}
	return copy(f.data[offset:end], b), nil
}

// Seek repositions the cursor used by Read.
func (f *FileImpl) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, errors.New("testhelper: invalid whence")
	}
	f.pos = base + offset
	return f.pos, nil
}

// Sys has nothing to return: FileImpl is never backed by a real os.File,
// so the block-device ioctl path in the device package is unreachable
// for it by construction.
func (f *FileImpl) Sys() (*os.File, error) {
	return nil, errors.New("testhelper: FileImpl has no backing os.File")
}

// Writable returns the same value: FileImpl already implements WriteAt.
func (f *FileImpl) Writable() (backend.WritableFile, error) {
	return f, nil
}

type fileImplInfo struct {
	size int64
}

func (i fileImplInfo) Name() string       { return "nanofs-image" }
func (i fileImplInfo) Size() int64        { return i.size }
func (i fileImplInfo) Mode() fs.FileMode  { return 0o666 }
func (i fileImplInfo) ModTime() time.Time { return time.Time{} }
func (i fileImplInfo) IsDir() bool        { return false }
func (i fileImplInfo) Sys() interface{}   { return nil }
