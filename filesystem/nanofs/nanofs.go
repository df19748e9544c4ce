// Package nanofs implements the NanoFS on-disk layout (spec §§3-6) on top
// of an opened github.com/paulino/nanofs-fuse/device.Device: the singly-
// linked free-list allocator, the directory engine, and the file I/O
// engine, exposed through an adapter that satisfies
// github.com/paulino/nanofs-fuse/filesystem.FileSystem.
//
// The engine keeps no internal locking. A single FileSystem value is not
// safe for concurrent use; callers (the CLIs, the FUSE bridge) serialize
// access themselves, the same cooperative-single-threaded contract
// go-diskfs's filesystem implementations assume of their own callers.
package nanofs

import (
	"fmt"

	"github.com/paulino/nanofs-fuse/backend"
	"github.com/paulino/nanofs-fuse/codec"
	"github.com/paulino/nanofs-fuse/device"
	"github.com/paulino/nanofs-fuse/filesystem"
)

// FileSystem is a mounted NanoFS image: a device handle plus the
// directory/file/allocator logic operating on it.
type FileSystem struct {
	dev *device.Device
}

// New wraps an already-open, superblock-validated device as a NanoFS
// engine instance. The caller (Create or Read below) is responsible for
// having written a valid superblock and root node before passing a
// writable device here.
func New(dev *device.Device) *FileSystem {
	return &FileSystem{dev: dev}
}

// Read opens an existing NanoFS image for use, mounting it read-write
// unless readOnly is set.
func Read(storage backend.Storage, size int64, readOnly bool) (*FileSystem, error) {
	dev, err := device.Open(storage, size, readOnly)
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

// Create formats a freshly allocated (all-zero) image of fsSize bytes as a
// new, empty NanoFS filesystem: a superblock, a single root directory node
// with no children, and the remainder of the device as one free-list node
// (spec §6, "Creation").
func Create(storage backend.Storage, fsSize int64, label string) (*FileSystem, error) {
	const blockSize = 1 << 9 // the only block size the formatter writes (code 1).
	if fsSize < 3*blockSize {
		return nil, fmt.Errorf("%w: image must hold at least 3 blocks (superblock, root, one free node)", ErrInvalid)
	}
	if len(label) > codec.MaxFName {
		return nil, fmt.Errorf("%w: label %d bytes exceeds max of %d", ErrInvalid, len(label), codec.MaxFName)
	}

	totalBlocks := fsSize / blockSize
	sb := codec.Superblock{
		Magic:     codec.SuperblockMagic,
		BlockSize: codec.BlockSizeCode512,
		Revision:  codec.CurrentRevision,
		RootPtr:   1,
		FreePtr:   2,
		FSSize:    uint32(totalBlocks),
	}

	w, err := storage.Writable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := codec.WriteSuperblock(w, 0, &sb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	root := codec.DirEntry{Flags: codec.FlagDir, FName: label}
	if err := codec.WriteDirEntry(w, blockSize, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	freeBlocks := totalBlocks - 2
	freeLen := uint32(freeBlocks*blockSize) - codec.DataNodeHeaderSize
	free := codec.DataNode{NextPtr: 0, Len: freeLen}
	if err := codec.WriteDataNode(w, 2*blockSize, &free); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	dev, err := device.Open(storage, fsSize, false)
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

// Type implements filesystem.FileSystem.
func (fs *FileSystem) Type() filesystem.Type {
	return filesystem.TypeNanoFS
}

// Label returns the root node's filename, which NanoFS overloads as the
// volume label since the root entry has no parent to be named from.
func (fs *FileSystem) Label() string {
	root, err := fs.rootHandle()
	if err != nil {
		return ""
	}
	return root.Node.FName
}

// SetLabel rewrites the root node's filename.
func (fs *FileSystem) SetLabel(label string) error {
	if len(label) > codec.MaxFName {
		return fmt.Errorf("%w: label %d bytes exceeds max of %d", ErrInvalid, len(label), codec.MaxFName)
	}
	root, err := fs.rootHandle()
	if err != nil {
		return err
	}
	root.Node.FName = label
	return fs.writeEntry(root.Block, &root.Node)
}

// FreeBytes reports the number of payload bytes reachable from the
// superblock's free-list head (spec §8, the free-space accounting
// invariant).
func (fs *FileSystem) FreeBytes() (int64, error) {
	var total int64
	block := fs.dev.Superblock.FreePtr
	seen := make(map[uint32]bool)
	for block != 0 {
		if seen[block] {
			return 0, fmt.Errorf("%w: free list cycles back to block %d", ErrCorrupt, block)
		}
		seen[block] = true
		dn, err := fs.readDataNode(block)
		if err != nil {
			return 0, err
		}
		total += int64(dn.Len)
		block = dn.NextPtr
	}
	return total, nil
}

func (fs *FileSystem) rootHandle() (*Handle, error) {
	e, err := fs.readEntry(fs.dev.Superblock.RootPtr)
	if err != nil {
		return nil, err
	}
	return &Handle{Block: fs.dev.Superblock.RootPtr, Node: *e}, nil
}

func (fs *FileSystem) writableStorage() (backend.WritableFile, error) {
	w, err := fs.dev.Storage.Writable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return w, nil
}

func (fs *FileSystem) readEntry(block uint32) (*codec.DirEntry, error) {
	e, err := codec.ReadDirEntry(fs.dev.Storage, fs.dev.Offset(block))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return e, nil
}

func (fs *FileSystem) writeEntry(block uint32, e *codec.DirEntry) error {
	w, err := fs.writableStorage()
	if err != nil {
		return err
	}
	if err := codec.WriteDirEntry(w, fs.dev.Offset(block), e); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (fs *FileSystem) readDataNode(block uint32) (*codec.DataNode, error) {
	n, err := codec.ReadDataNode(fs.dev.Storage, fs.dev.Offset(block))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return n, nil
}

func (fs *FileSystem) writeDataNode(block uint32, n *codec.DataNode) error {
	w, err := fs.writableStorage()
	if err != nil {
		return err
	}
	if err := codec.WriteDataNode(w, fs.dev.Offset(block), n); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
