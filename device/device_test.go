package device_test

import (
	"os"
	"path/filepath"
	"testing"

	backendfile "github.com/paulino/nanofs-fuse/backend/file"
	"github.com/paulino/nanofs-fuse/codec"
	"github.com/paulino/nanofs-fuse/device"
)

func writeImage(t *testing.T, size int64, sb *codec.Superblock) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.nfs")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if sb != nil {
		if err := codec.WriteSuperblock(f, 0, sb); err != nil {
			t.Fatalf("write superblock: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestOpenValidSuperblock(t *testing.T) {
	sb := &codec.Superblock{Magic: codec.SuperblockMagic, BlockSize: codec.BlockSizeCode512, RootPtr: 1, FreePtr: 2, FSSize: 2048}
	path := writeImage(t, 1<<20, sb)

	storage, err := backendfile.OpenFromPath(path, false)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()

	dev, err := device.Open(storage, 1<<20, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if dev.BlockShift != 9 {
		t.Fatalf("expected block shift 9, got %d", dev.BlockShift)
	}
	if dev.BlockSize() != 512 {
		t.Fatalf("expected block size 512, got %d", dev.BlockSize())
	}
	if dev.Offset(3) != 3*512 {
		t.Fatalf("expected offset 1536, got %d", dev.Offset(3))
	}
}

func TestOpenBadMagic(t *testing.T) {
	sb := &codec.Superblock{Magic: 0xFFFF, BlockSize: codec.BlockSizeCode512}
	path := writeImage(t, 4096, sb)
	storage, err := backendfile.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()
	if _, err := device.Open(storage, 4096, true); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestOpenUnsupportedRevision(t *testing.T) {
	sb := &codec.Superblock{Magic: codec.SuperblockMagic, BlockSize: codec.BlockSizeCode512, Revision: 1}
	path := writeImage(t, 4096, sb)
	storage, err := backendfile.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()
	if _, err := device.Open(storage, 4096, true); err == nil {
		t.Fatal("expected unsupported revision error")
	}
}

func TestOpenReservedBlockSize(t *testing.T) {
	sb := &codec.Superblock{Magic: codec.SuperblockMagic, BlockSize: codec.BlockSizeCodeReserved}
	path := writeImage(t, 4096, sb)
	storage, err := backendfile.OpenFromPath(path, true)
	if err != nil {
		t.Fatalf("OpenFromPath: %v", err)
	}
	defer storage.Close()
	if _, err := device.Open(storage, 4096, true); err == nil {
		t.Fatal("expected unsupported block size error for reserved code 0")
	}
}

func TestCreatePathRejectsExisting(t *testing.T) {
	path := writeImage(t, 4096, nil)
	if _, err := device.CreatePath(path, 4096); err == nil {
		t.Fatal("expected error creating over an existing file")
	}
}
