// Package codec implements the packed little-endian binary layout of the
// three NanoFS record kinds: the superblock, directory nodes, and data
// nodes. The layout does not match natural Go struct alignment, so every
// field is emitted and parsed by explicit byte position rather than by
// copying a memory image, the same way iso9660.directoryEntry does it in
// go-diskfs, the library this module grew out of.
//
// All offsets passed to the Read*/Write* functions are absolute byte
// offsets into the backing device; callers compute them as
// blockNo << blockShift and never pass block-relative offsets.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// SuperblockMagic is the constant magic value identifying a NanoFS image.
	SuperblockMagic uint16 = 0x4E61

	// SuperblockSize is the on-disk size of the superblock record, including
	// a 2-byte reserved pad: the field widths in the spec total 18 bytes but
	// the record is defined to occupy 20 bytes. The pad is always written
	// as zero and never interpreted.
	SuperblockSize = 20

	// BlockSizeCode512 is the only block_size encoding the formatter writes:
	// it means a 512-byte block (block shift 9).
	BlockSizeCode512 uint8 = 1
	// BlockSizeCodeReserved is reserved: device.Open rejects it, so neither
	// the engine nor the inspector (which opens images the same way) mounts
	// an image carrying it.
	BlockSizeCodeReserved uint8 = 0

	// CurrentRevision is the only format revision this engine understands.
	CurrentRevision uint8 = 0

	// DirEntryHeaderSize is the fixed portion of a directory node, before
	// the variable-length filename tail.
	DirEntryHeaderSize = 14

	// DataNodeHeaderSize is the fixed size of a data node header; payload
	// bytes, if any, immediately follow at offset+DataNodeHeaderSize.
	DataNodeHeaderSize = 8

	// FlagDir marks a directory node as a directory rather than a regular
	// file (spec §3, flags bit 0).
	FlagDir uint8 = 0x01

	// MaxFName is the largest filename length a directory node can encode.
	MaxFName = 255
)

// Superblock is the single block-0 record describing the whole filesystem.
type Superblock struct {
	Magic     uint16
	BlockSize uint8
	Revision  uint8
	RootPtr   uint32
	FreePtr   uint32
	FSSize    uint32
	ExtraSize uint16
}

// MarshalBinary encodes the superblock into its 20-byte on-disk form.
func (sb *Superblock) MarshalBinary() []byte {
	b := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint16(b[0:2], sb.Magic)
	b[2] = sb.BlockSize
	b[3] = sb.Revision
	binary.LittleEndian.PutUint32(b[4:8], sb.RootPtr)
	binary.LittleEndian.PutUint32(b[8:12], sb.FreePtr)
	binary.LittleEndian.PutUint32(b[12:16], sb.FSSize)
	binary.LittleEndian.PutUint16(b[16:18], sb.ExtraSize)
	// b[18:20] stays zero: reserved pad.
	return b
}

// UnmarshalBinary decodes a superblock from its 20-byte on-disk form.
func (sb *Superblock) UnmarshalBinary(b []byte) error {
	if len(b) < SuperblockSize {
		return fmt.Errorf("codec: short superblock read, got %d bytes want %d", len(b), SuperblockSize)
	}
	sb.Magic = binary.LittleEndian.Uint16(b[0:2])
	sb.BlockSize = b[2]
	sb.Revision = b[3]
	sb.RootPtr = binary.LittleEndian.Uint32(b[4:8])
	sb.FreePtr = binary.LittleEndian.Uint32(b[8:12])
	sb.FSSize = binary.LittleEndian.Uint32(b[12:16])
	sb.ExtraSize = binary.LittleEndian.Uint16(b[16:18])
	return nil
}

// ReadSuperblock reads and decodes the superblock at offset.
func ReadSuperblock(r io.ReaderAt, offset int64) (*Superblock, error) {
	b := make([]byte, SuperblockSize)
	n, err := r.ReadAt(b, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("codec: read superblock at %d: %w", offset, err)
	}
	if n < SuperblockSize {
		return nil, fmt.Errorf("codec: short read for superblock at %d: got %d of %d bytes", offset, n, SuperblockSize)
	}
	sb := &Superblock{}
	if err := sb.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return sb, nil
}

// WriteSuperblock encodes and writes the superblock at offset.
func WriteSuperblock(w io.WriterAt, offset int64, sb *Superblock) error {
	b := sb.MarshalBinary()
	n, err := w.WriteAt(b, offset)
	if err != nil {
		return fmt.Errorf("codec: write superblock at %d: %w", offset, err)
	}
	if n != len(b) {
		return fmt.Errorf("codec: short write for superblock at %d: wrote %d of %d bytes", offset, n, len(b))
	}
	return nil
}

// DirEntry is the 14-byte-header record used for both directories and
// regular files; Flags bit 0 distinguishes the two (spec §3).
type DirEntry struct {
	Flags   uint8
	NextPtr uint32
	DataPtr uint32
	MetaPtr uint32
	FName   string
}

// IsDir reports whether the entry's directory bit is set.
func (e *DirEntry) IsDir() bool {
	return e.Flags&FlagDir != 0
}

// Size returns the total on-disk size of the entry: header plus filename.
func (e *DirEntry) Size() int {
	return DirEntryHeaderSize + len(e.FName)
}

// MarshalBinary encodes the entry, header followed by the raw filename
// bytes (not null-terminated on disk).
func (e *DirEntry) MarshalBinary() ([]byte, error) {
	if len(e.FName) > MaxFName {
		return nil, fmt.Errorf("codec: filename %d bytes exceeds max of %d", len(e.FName), MaxFName)
	}
	b := make([]byte, DirEntryHeaderSize+len(e.FName))
	b[0] = e.Flags
	binary.LittleEndian.PutUint32(b[1:5], e.NextPtr)
	binary.LittleEndian.PutUint32(b[5:9], e.DataPtr)
	binary.LittleEndian.PutUint32(b[9:13], e.MetaPtr)
	b[13] = uint8(len(e.FName))
	copy(b[DirEntryHeaderSize:], e.FName)
	return b, nil
}

// UnmarshalBinary decodes the 14-byte header from b and returns its
// fname_len byte. The header alone does not carry the name: the caller
// reads the fname_len bytes that follow it and stores them in FName, as
// ReadDirEntry does.
func (e *DirEntry) UnmarshalBinary(b []byte) (fnameLen uint8, err error) {
	if len(b) < DirEntryHeaderSize {
		return 0, fmt.Errorf("codec: short dir entry header, got %d bytes want %d", len(b), DirEntryHeaderSize)
	}
	e.Flags = b[0]
	e.NextPtr = binary.LittleEndian.Uint32(b[1:5])
	e.DataPtr = binary.LittleEndian.Uint32(b[5:9])
	e.MetaPtr = binary.LittleEndian.Uint32(b[9:13])
	return b[13], nil
}

// ReadDirEntry reads and decodes a directory node at offset, including its
// variable-length filename tail.
func ReadDirEntry(r io.ReaderAt, offset int64) (*DirEntry, error) {
	hdr := make([]byte, DirEntryHeaderSize)
	n, err := r.ReadAt(hdr, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("codec: read dir entry header at %d: %w", offset, err)
	}
	if n < DirEntryHeaderSize {
		return nil, fmt.Errorf("codec: short read for dir entry header at %d: got %d of %d bytes", offset, n, DirEntryHeaderSize)
	}
	e := &DirEntry{}
	fnameLen, err := e.UnmarshalBinary(hdr)
	if err != nil {
		return nil, err
	}
	if fnameLen > 0 {
		nameBuf := make([]byte, fnameLen)
		n, err := r.ReadAt(nameBuf, offset+DirEntryHeaderSize)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("codec: read dir entry name at %d: %w", offset+DirEntryHeaderSize, err)
		}
		if n < int(fnameLen) {
			return nil, fmt.Errorf("codec: short read for dir entry name at %d: got %d of %d bytes", offset+DirEntryHeaderSize, n, fnameLen)
		}
		e.FName = string(nameBuf)
	}
	return e, nil
}

// WriteDirEntry encodes and writes a directory node at offset.
func WriteDirEntry(w io.WriterAt, offset int64, e *DirEntry) error {
	b, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	n, err := w.WriteAt(b, offset)
	if err != nil {
		return fmt.Errorf("codec: write dir entry at %d: %w", offset, err)
	}
	if n != len(b) {
		return fmt.Errorf("codec: short write for dir entry at %d: wrote %d of %d bytes", offset, n, len(b))
	}
	return nil
}

// DataNode is the variable-length record backing either a free-list
// element or a file extent; only the 8-byte header is part of the codec,
// payload bytes are read/written directly by the file I/O engine.
type DataNode struct {
	NextPtr uint32
	Len     uint32
}

// MarshalBinary encodes the 8-byte data node header.
func (n *DataNode) MarshalBinary() []byte {
	b := make([]byte, DataNodeHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], n.NextPtr)
	binary.LittleEndian.PutUint32(b[4:8], n.Len)
	return b
}

// UnmarshalBinary decodes the 8-byte data node header.
func (n *DataNode) UnmarshalBinary(b []byte) error {
	if len(b) < DataNodeHeaderSize {
		return fmt.Errorf("codec: short data node header, got %d bytes want %d", len(b), DataNodeHeaderSize)
	}
	n.NextPtr = binary.LittleEndian.Uint32(b[0:4])
	n.Len = binary.LittleEndian.Uint32(b[4:8])
	return nil
}

// ReadDataNode reads and decodes a data node header at offset.
func ReadDataNode(r io.ReaderAt, offset int64) (*DataNode, error) {
	b := make([]byte, DataNodeHeaderSize)
	n, err := r.ReadAt(b, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("codec: read data node at %d: %w", offset, err)
	}
	if n < DataNodeHeaderSize {
		return nil, fmt.Errorf("codec: short read for data node at %d: got %d of %d bytes", offset, n, DataNodeHeaderSize)
	}
	dn := &DataNode{}
	if err := dn.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return dn, nil
}

// WriteDataNode encodes and writes a data node header at offset.
func WriteDataNode(w io.WriterAt, offset int64, n *DataNode) error {
	b := n.MarshalBinary()
	wn, err := w.WriteAt(b, offset)
	if err != nil {
		return fmt.Errorf("codec: write data node at %d: %w", offset, err)
	}
	if wn != len(b) {
		return fmt.Errorf("codec: short write for data node at %d: wrote %d of %d bytes", offset, wn, len(b))
	}
	return nil
}

// Footprint returns the number of blocks a data node of the given payload
// length occupies: ceil((8+len)/blockSize).
func Footprint(payloadLen uint32, blockSize int) int {
	total := int(payloadLen) + DataNodeHeaderSize
	return (total + blockSize - 1) / blockSize
}
