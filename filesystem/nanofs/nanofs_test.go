package nanofs

import (
	"io"
	"os"
	"testing"

	"github.com/paulino/nanofs-fuse/testhelper"
)

func create(t *testing.T, size int64, label string) *FileSystem {
	t.Helper()
	storage := testhelper.NewFileImpl(size)
	fs, err := Create(storage, size, label)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return fs
}

func TestCreateAndLabel(t *testing.T) {
	fs := create(t, 1<<20, "vol")
	if got := fs.Label(); got != "vol" {
		t.Fatalf("label = %q, want %q", got, "vol")
	}
	free, err := fs.FreeBytes()
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	// 1MiB image, 512-byte blocks: 2048 total blocks minus superblock
	// and root leaves 2046 blocks of free-list payload.
	want := int64(2046*512 - 8)
	if free != want {
		t.Fatalf("FreeBytes = %d, want %d", free, want)
	}
}

func TestMkdirAndList(t *testing.T) {
	fs := create(t, 1<<20, "")
	if err := fs.Mkdir("/a"); err != nil {
		t.Fatalf("mkdir /a: %v", err)
	}
	if err := fs.Mkdir("/a/b"); err != nil {
		t.Fatalf("mkdir /a/b: %v", err)
	}
	if err := fs.Mkdir("/a"); err == nil {
		t.Fatal("expected AlreadyExists recreating /a")
	}
	entries, err := fs.ReadDir("/a")
	if err != nil {
		t.Fatalf("readdir /a: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "b" || !entries[0].IsDir() {
		t.Fatalf("unexpected /a listing: %+v", entries)
	}
	if err := fs.Mkdir("/x/y"); err == nil {
		t.Fatal("expected NotFound creating under a missing parent")
	}
}

func TestCreateFileWriteReadTruncate(t *testing.T) {
	fs := create(t, 1<<20, "")
	f, err := fs.OpenFile("/f", os.O_CREATE|os.O_RDWR)
	if err != nil {
		t.Fatalf("create /f: %v", err)
	}
	n, err := f.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	g, err := fs.OpenFile("/f", os.O_RDONLY)
	if err != nil {
		t.Fatalf("open /f: %v", err)
	}
	buf := make([]byte, 5)
	n, err = g.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("read: n=%d err=%v buf=%q", n, err, buf)
	}

	stat, err := g.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Size() != 5 {
		t.Fatalf("size = %d, want 5", stat.Size())
	}

	// append beyond current content
	if _, err := f.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := f.Write([]byte(" world")); err != nil {
		t.Fatalf("append write: %v", err)
	}

	h, err := fs.OpenFile("/f", os.O_RDONLY)
	if err != nil {
		t.Fatalf("reopen /f: %v", err)
	}
	buf = make([]byte, 64)
	n, _ = h.Read(buf)
	if string(buf[:n]) != "hello world" {
		t.Fatalf("content after append = %q", buf[:n])
	}

	before, err := fs.FreeBytes()
	if err != nil {
		t.Fatalf("FreeBytes before truncate: %v", err)
	}
	file, ok := h.(*File)
	if !ok {
		t.Fatalf("unexpected File type %T", h)
	}
	if err := fs.truncate(file.handle, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	after, err := fs.FreeBytes()
	if err != nil {
		t.Fatalf("FreeBytes after truncate: %v", err)
	}
	if after <= before {
		t.Fatalf("truncate did not return space to the free list: before=%d after=%d", before, after)
	}

	k, err := fs.OpenFile("/f", os.O_RDONLY)
	if err != nil {
		t.Fatalf("reopen after truncate: %v", err)
	}
	stat, err = k.Stat()
	if err != nil {
		t.Fatalf("stat after truncate: %v", err)
	}
	if stat.Size() != 0 {
		t.Fatalf("size after truncate = %d, want 0", stat.Size())
	}
}

func TestWriteZeroLengthIsNoOp(t *testing.T) {
	fs := create(t, 1<<20, "")
	f, err := fs.OpenFile("/f", os.O_CREATE|os.O_RDWR)
	if err != nil {
		t.Fatalf("create /f: %v", err)
	}
	n, err := f.Write(nil)
	if err != nil || n != 0 {
		t.Fatalf("zero write: n=%d err=%v", n, err)
	}
}

func TestRemoveFileReturnsBlockToFreeList(t *testing.T) {
	fs := create(t, 1<<20, "")
	if _, err := fs.OpenFile("/f", os.O_CREATE); err != nil {
		t.Fatalf("create /f: %v", err)
	}
	before, err := fs.FreeBytes()
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if err := fs.Remove("/f"); err != nil {
		t.Fatalf("remove /f: %v", err)
	}
	after, err := fs.FreeBytes()
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if after <= before {
		t.Fatalf("remove did not return space: before=%d after=%d", before, after)
	}
	if _, err := fs.ReadDir("/"); err != nil {
		t.Fatalf("readdir /: %v", err)
	}
	if _, err := fs.resolve("/f"); err != ErrNotFound {
		t.Fatalf("expected NotFound resolving removed file, got %v", err)
	}
}

func TestRmdirDoesNotCheckEmptiness(t *testing.T) {
	fs := create(t, 1<<20, "")
	if err := fs.Mkdir("/d"); err != nil {
		t.Fatalf("mkdir /d: %v", err)
	}
	if err := fs.Mkdir("/d/child"); err != nil {
		t.Fatalf("mkdir /d/child: %v", err)
	}
	if err := fs.Remove("/d"); err != nil {
		t.Fatalf("remove non-empty /d: %v", err)
	}
	if _, err := fs.resolve("/d"); err != ErrNotFound {
		t.Fatalf("expected /d gone, got %v", err)
	}
}

func TestFilenameBoundaryLengths(t *testing.T) {
	fs := create(t, 1<<20, "")
	max := make([]byte, 255)
	for i := range max {
		max[i] = 'a'
	}
	if err := fs.Mkdir("/" + string(max)); err != nil {
		t.Fatalf("mkdir with 255-byte name: %v", err)
	}
	tooLong := string(max) + "a"
	if err := fs.Mkdir("/" + tooLong); err == nil {
		t.Fatal("expected error creating a 256-byte name")
	}
}

func TestCheckReportsCleanImage(t *testing.T) {
	fs := create(t, 1<<20, "")
	if err := fs.Mkdir("/a"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := fs.OpenFile("/a/f", os.O_CREATE|os.O_RDWR)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("some data")); err != nil {
		t.Fatalf("write: %v", err)
	}
	report, err := fs.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected clean report, got unaccounted=%v duplicated=%v", report.UnaccountedBlocks, report.DoubleClaimed)
	}
}
