package codec_test

import (
	"testing"

	"github.com/paulino/nanofs-fuse/codec"
)

// memDevice is a minimal io.ReaderAt/io.WriterAt backed by a byte slice,
// standing in for a real block device in codec round-trip tests.
type memDevice struct {
	data []byte
}

func newMemDevice(size int) *memDevice {
	return &memDevice{data: make([]byte, size)}
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func TestSuperblockRoundTrip(t *testing.T) {
	dev := newMemDevice(4096)
	sb := &codec.Superblock{
		Magic:     codec.SuperblockMagic,
		BlockSize: codec.BlockSizeCode512,
		Revision:  0,
		RootPtr:   1,
		FreePtr:   2,
		FSSize:    2048,
		ExtraSize: 0,
	}
	if err := codec.WriteSuperblock(dev, 0, sb); err != nil {
		t.Fatalf("WriteSuperblock: %v", err)
	}
	got, err := codec.ReadSuperblock(dev, 0)
	if err != nil {
		t.Fatalf("ReadSuperblock: %v", err)
	}
	if *got != *sb {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sb)
	}
}

func TestSuperblockReservedPadIsZero(t *testing.T) {
	dev := newMemDevice(512)
	sb := &codec.Superblock{Magic: codec.SuperblockMagic, BlockSize: 1, FSSize: 10}
	if err := codec.WriteSuperblock(dev, 0, sb); err != nil {
		t.Fatalf("WriteSuperblock: %v", err)
	}
	if dev.data[18] != 0 || dev.data[19] != 0 {
		t.Fatalf("expected reserved pad bytes to be zero, got %v", dev.data[18:20])
	}
}

func TestDirEntryRoundTrip(t *testing.T) {
	for _, name := range []string{"", "a", "vol", "this-is-a-name"} {
		dev := newMemDevice(4096)
		e := &codec.DirEntry{
			Flags:   codec.FlagDir,
			NextPtr: 7,
			DataPtr: 3,
			MetaPtr: 0,
			FName:   name,
		}
		if err := codec.WriteDirEntry(dev, 0, e); err != nil {
			t.Fatalf("WriteDirEntry(%q): %v", name, err)
		}
		got, err := codec.ReadDirEntry(dev, 0)
		if err != nil {
			t.Fatalf("ReadDirEntry(%q): %v", name, err)
		}
		if *got != *e {
			t.Fatalf("round trip mismatch for %q: got %+v, want %+v", name, got, e)
		}
	}
}

func TestDirEntryMaxNameLength(t *testing.T) {
	dev := newMemDevice(1024)
	name := make([]byte, codec.MaxFName)
	for i := range name {
		name[i] = byte('a' + i%26)
	}
	e := &codec.DirEntry{FName: string(name)}
	if err := codec.WriteDirEntry(dev, 0, e); err != nil {
		t.Fatalf("WriteDirEntry: %v", err)
	}
	got, err := codec.ReadDirEntry(dev, 0)
	if err != nil {
		t.Fatalf("ReadDirEntry: %v", err)
	}
	if len(got.FName) != codec.MaxFName {
		t.Fatalf("expected %d byte name, got %d", codec.MaxFName, len(got.FName))
	}
}

func TestDirEntryNameTooLong(t *testing.T) {
	dev := newMemDevice(1024)
	name := make([]byte, codec.MaxFName+1)
	e := &codec.DirEntry{FName: string(name)}
	if err := codec.WriteDirEntry(dev, 0, e); err == nil {
		t.Fatalf("expected error writing a %d-byte filename", len(name))
	}
}

func TestDirEntryIsDir(t *testing.T) {
	dir := codec.DirEntry{Flags: codec.FlagDir}
	file := codec.DirEntry{Flags: 0}
	if !dir.IsDir() {
		t.Fatal("expected flags 0x01 to report IsDir() true")
	}
	if file.IsDir() {
		t.Fatal("expected flags 0x00 to report IsDir() false")
	}
}

func TestDataNodeRoundTrip(t *testing.T) {
	dev := newMemDevice(4096)
	dn := &codec.DataNode{NextPtr: 42, Len: 1000}
	if err := codec.WriteDataNode(dev, 512, dn); err != nil {
		t.Fatalf("WriteDataNode: %v", err)
	}
	got, err := codec.ReadDataNode(dev, 512)
	if err != nil {
		t.Fatalf("ReadDataNode: %v", err)
	}
	if *got != *dn {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, dn)
	}
}

func TestFootprint(t *testing.T) {
	tests := []struct {
		payload uint32
		block   int
		want    int
	}{
		{0, 512, 1},
		{504, 512, 1},   // exactly fills one block: 8 + 504 = 512
		{505, 512, 2},   // one byte over
		{1047544, 512, 2046}, // fresh 1MiB image's free node: 2048 blocks minus superblock and root
	}
	for _, tt := range tests {
		got := codec.Footprint(tt.payload, tt.block)
		if got != tt.want {
			t.Errorf("Footprint(%d, %d) = %d, want %d", tt.payload, tt.block, got, tt.want)
		}
	}
}
