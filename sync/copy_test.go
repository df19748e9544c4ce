package sync

import (
	"bytes"
	"io/fs"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/paulino/nanofs-fuse/filesystem"
)

// fakeFS implements filesystem.FileSystem for testing CopyFileSystem
// without a real NanoFS image.
type fakeFS struct {
	dirs  []string
	files map[string][]byte
}

// fakeFile satisfies filesystem.File.
type fakeFile struct {
	path string
	buf  *bytes.Buffer
	fs   *fakeFS
}

func (f *fakeFS) Mkdir(path string) error {
	f.dirs = append(f.dirs, path)
	return nil
}

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Mknod(pathname string, mode uint32, dev int) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Link(oldpath, newpath string) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Symlink(oldpath, newpath string) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Chmod(name string, mode os.FileMode) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Chown(name string, uid, gid int) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Rename(oldpath, newpath string) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) Remove(pathname string) error { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) ReadDir(pathname string) ([]os.FileInfo, error) { return nil, nil }

func (f *fakeFS) Type() filesystem.Type { return filesystem.TypeNanoFS }

func (f *fakeFS) Label() string { return "" }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFS) SetLabel(label string) error { return nil }

//nolint:revive // flag is unused, keeping for clarity of intent.
func (f *fakeFS) OpenFile(pathname string, flag int) (filesystem.File, error) {
	buf := &bytes.Buffer{}
	ff := &fakeFile{path: pathname, buf: buf, fs: f}
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	return ff, nil
}

func (f *fakeFile) Write(p []byte) (int, error) {
	n, err := f.buf.Write(p)
	f.fs.files[f.path] = f.buf.Bytes()
	return n, err
}

func (f *fakeFile) Read(p []byte) (int, error) { return f.buf.Read(p) }
func (f *fakeFile) Close() error                { return nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFile) Seek(offset int64, whence int) (int64, error) { return 0, nil }

func (f *fakeFile) Stat() (fs.FileInfo, error) { return f, nil }

//nolint:revive // keeping args for clarity of intent.
func (f *fakeFile) ReadDir(n int) ([]fs.DirEntry, error) { return nil, nil }

func (f *fakeFile) Name() string       { return f.path }
func (f *fakeFile) Size() int64        { return int64(f.buf.Len()) }
func (f *fakeFile) Mode() os.FileMode  { return 0 }
func (f *fakeFile) ModTime() time.Time { return time.Time{} }
func (f *fakeFile) IsDir() bool        { return false }
func (f *fakeFile) Sys() interface{}   { return nil }

func TestCopyFileSystem_Basic(t *testing.T) {
	now := time.Now()
	src := fstest.MapFS{
		"foo.txt": {Data: []byte("hello"), ModTime: now},
		"dir":     {Mode: fs.ModeDir, ModTime: now},
		"dir/bar": {Data: []byte("world"), ModTime: now},
	}
	dst := &fakeFS{}
	if err := CopyFileSystem(src, dst); err != nil {
		t.Fatalf("CopyFileSystem failed: %v", err)
	}
	found := false
	for _, d := range dst.dirs {
		if d == "/dir" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Mkdir(\"/dir\"), got %v", dst.dirs)
	}
	if string(dst.files["/foo.txt"]) != "hello" {
		t.Errorf("foo.txt = %q, want %q", dst.files["/foo.txt"], "hello")
	}
	if string(dst.files["/dir/bar"]) != "world" {
		t.Errorf("dir/bar = %q, want %q", dst.files["/dir/bar"], "world")
	}
}

func TestCopyFileSystem_SkipNonRegular(t *testing.T) {
	src := fstest.MapFS{
		"sl": {Data: []byte(""), Mode: fs.ModeSymlink},
	}
	dst := &fakeFS{}
	if err := CopyFileSystem(src, dst); err != nil {
		t.Fatalf("CopyFileSystem failed: %v", err)
	}
	if _, ok := dst.files["/sl"]; ok {
		t.Errorf("expected non-regular file to be skipped, but copied")
	}
}
