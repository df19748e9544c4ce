// Package device implements the NanoFS device handle (spec §4.2): opening
// a backing file or block device, loading and validating the superblock,
// and caching the block shift so every later block-to-offset conversion is
// a left shift. It is the bottom layer of the engine — the directory and
// file engines and the allocator call down into it, never the reverse.
//
// The OS-level Open/Create helpers below are adapted from go-diskfs's
// top-level diskfs.go (Open/Create/initDisk): detect whether the path is a
// regular file or a block device, and for a real block device, use the
// platform ioctls to discover its logical sector size.
package device

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulino/nanofs-fuse/backend"
	backendfile "github.com/paulino/nanofs-fuse/backend/file"
	"github.com/paulino/nanofs-fuse/codec"
)

// Kind distinguishes a plain disk image file from an OS-managed block
// device; only the latter needs ioctl-based sizing.
type Kind int

const (
	// RegularFile is a disk image backed by an ordinary file.
	RegularFile Kind = iota
	// BlockDevice is an OS-managed block device, e.g. /dev/sdb.
	BlockDevice
)

const defaultBlockSize = 512

// Device is an opened, superblock-validated NanoFS device handle.
type Device struct {
	Storage    backend.Storage
	Kind       Kind
	Size       int64
	BlockShift uint
	Superblock codec.Superblock
	readOnly   bool
}

func blockShiftFor(code uint8) (uint, error) {
	switch code {
	case codec.BlockSizeCode512:
		return 9, nil
	case codec.BlockSizeCodeReserved:
		return 0, fmt.Errorf("%w: block size code 0 is reserved for future use", ErrUnsupportedBlockSize)
	default:
		return 0, fmt.Errorf("%w: unknown block size code %d", ErrUnsupportedBlockSize, code)
	}
}

// Open validates and wraps an already-open backend.Storage as a NanoFS
// device: it reads the superblock at block 0, checks the magic, revision,
// and block size, and caches the resulting block shift.
func Open(storage backend.Storage, size int64, readOnly bool) (*Device, error) {
	sb, err := codec.ReadSuperblock(storage, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if sb.Magic != codec.SuperblockMagic {
		return nil, ErrBadMagic
	}
	if sb.Revision != codec.CurrentRevision {
		return nil, fmt.Errorf("%w: got revision %d", ErrUnsupportedRevision, sb.Revision)
	}
	shift, err := blockShiftFor(sb.BlockSize)
	if err != nil {
		return nil, err
	}
	return &Device{
		Storage:    storage,
		Size:       size,
		BlockShift: shift,
		Superblock: *sb,
		readOnly:   readOnly,
	}, nil
}

// Offset converts a block number to an absolute byte offset.
func (d *Device) Offset(blockNo uint32) int64 {
	return int64(blockNo) << d.BlockShift
}

// BlockSize returns the device's block size in bytes.
func (d *Device) BlockSize() int {
	return 1 << d.BlockShift
}

// ReadOnly reports whether the device was opened read-only.
func (d *Device) ReadOnly() bool {
	return d.readOnly
}

// WriteSuperblock persists the device's in-memory superblock copy. Callers
// in the allocator and directory/file engines mutate d.Superblock in place
// and call this in the same operation that mutated it (spec §5: the
// superblock cache is the single source of truth for free_ptr).
func (d *Device) WriteSuperblock() error {
	if d.readOnly {
		return fmt.Errorf("%w: device is read-only", backend.ErrIncorrectOpenMode)
	}
	w, err := d.Storage.Writable()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := codec.WriteSuperblock(w, 0, &d.Superblock); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Close releases the underlying descriptor.
func (d *Device) Close() error {
	return d.Storage.Close()
}

// OpenPath opens an existing device or image file at path for the engine.
// It mirrors go-diskfs's diskfs.Open: stat the path, determine whether it
// is a regular file or a block device, and for a block device, query the
// OS for its logical sector size.
func OpenPath(path string, readOnly bool) (backend.Storage, int64, Kind, error) {
	if path == "" {
		return nil, 0, 0, errors.New("device: must pass a device or file path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("device: %s does not exist: %w", path, err)
	}

	var (
		kind Kind
		size int64
	)
	switch {
	case info.Mode().IsRegular():
		kind = RegularFile
		size = info.Size()
	case info.Mode()&os.ModeDevice != 0:
		kind = BlockDevice
	default:
		return nil, 0, 0, fmt.Errorf("device: %s is neither a regular file nor a block device", path)
	}

	storage, err := backendfile.OpenFromPath(path, readOnly)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if kind == BlockDevice {
		f, sysErr := storage.Sys()
		if sysErr == nil {
			logical, _, sizeErr := getSectorSizes(f)
			if sizeErr == nil && logical > 0 {
				if total, err := deviceByteSize(f); err == nil {
					size = total
				}
			}
		}
	}

	return storage, size, kind, nil
}

// CreatePath creates a new image file of the given size at path, for the
// formatter. Block devices are never created by NanoFS; only image files.
func CreatePath(path string, size int64) (backend.Storage, error) {
	if path == "" {
		return nil, errors.New("device: must pass an image path")
	}
	if size <= 0 {
		return nil, errors.New("device: must pass a positive image size")
	}
	storage, err := backendfile.CreateFromPath(path, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return storage, nil
}
