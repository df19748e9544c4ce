package nanofs

import (
	"fmt"

	"github.com/paulino/nanofs-fuse/codec"
)

// fileSize sums the live length of every extent in a file's chain (spec
// §4.5). It, not a stored size field, is the sole source of truth for a
// file's size: NanoFS has no inode-level size, only the chain.
func (fs *FileSystem) fileSize(h *Handle) (int64, error) {
	var total int64
	block := h.Node.DataPtr
	seen := make(map[uint32]bool)
	for block != 0 {
		if seen[block] {
			return 0, fmt.Errorf("%w: extent chain cycles back to block %d", ErrCorrupt, block)
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

// read copies up to len(buf) bytes starting at offset into buf, stopping
// at the end of the chain without zero-filling past it (spec §4.5,
// "Reading").
func (fs *FileSystem) read(h *Handle, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 || offset < 0 {
		return 0, nil
	}
	var (
		filePos   int64
		totalRead int
		block     = h.Node.DataPtr
	)
	for block != 0 && totalRead < len(buf) {
		dn, err := fs.readDataNode(block)
		if err != nil {
			return totalRead, err
		}
		extentEnd := filePos + int64(dn.Len)
		if extentEnd > offset {
			internalOff := offset - filePos
			if internalOff < 0 {
				internalOff = 0
			}
			avail := int64(dn.Len) - internalOff
			want := int64(len(buf) - totalRead)
			if want > avail {
				want = avail
			}
			if want > 0 {
				payloadOffset := fs.dev.Offset(block) + codec.DataNodeHeaderSize + internalOff
				n, err := fs.dev.Storage.ReadAt(buf[totalRead:totalRead+int(want)], payloadOffset)
				totalRead += n
				if err != nil {
					return totalRead, fmt.Errorf("%w: %v", ErrIO, err)
				}
			}
		}
		filePos = extentEnd
		block = dn.NextPtr
	}
	return totalRead, nil
}

// write implements the two-phase write algorithm of spec §4.5:
//
// Phase A overwrites within the extent that already covers offset, if
// any, and sets that extent's length to end exactly where the write
// ends. A short overwrite in the middle of a file therefore drops the
// rest of that one extent: its bytes past the write's end are no longer
// counted, and blocks of its footprint beyond the new length are no
// longer reached by truncate or Check. Extents after it stay linked and
// remain readable, now starting at the write's end.
//
// Phase B allocates fresh extents for any bytes that don't fit in an
// existing extent, attaching them after the last extent touched (the
// end of the chain, or the extent Phase A just wrote into) and
// discarding whatever that extent used to point to.
func (fs *FileSystem) write(h *Handle, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if offset < 0 {
		return 0, ErrInvalid
	}
	if h.Node.DataPtr == 0 {
		if offset != 0 {
			return 0, ErrInvalid
		}
		return fs.appendExtents(h, 0, buf)
	}

	blockSize := fs.dev.BlockSize()
	var (
		filePos   int64
		lastBlock uint32
		block     = h.Node.DataPtr
	)
	for block != 0 {
		dn, err := fs.readDataNode(block)
		if err != nil {
			return 0, err
		}
		extentEnd := filePos + int64(dn.Len)
		if extentEnd > offset {
			internalOff := offset - filePos
			if internalOff < 0 {
				internalOff = 0
			}
			footprint := codec.Footprint(dn.Len, blockSize)
			capacity := int64(footprint*blockSize) - codec.DataNodeHeaderSize - internalOff
			if capacity < 0 {
				capacity = 0
			}
			toWrite := int64(len(buf))
			if toWrite > capacity {
				toWrite = capacity
			}

			var written int
			if toWrite > 0 {
				w, err := fs.writableStorage()
				if err != nil {
					return 0, err
				}
				payloadOffset := fs.dev.Offset(block) + codec.DataNodeHeaderSize + internalOff
				n, err := w.WriteAt(buf[:toWrite], payloadOffset)
				if err != nil {
					return n, fmt.Errorf("%w: %v", ErrIO, err)
				}
				written = n
				dn.Len = uint32(internalOff) + uint32(n)
				if err := fs.writeDataNode(block, dn); err != nil {
					return written, err
				}
			}

			rest := buf[written:]
			if len(rest) == 0 {
				return written, nil
			}
			more, err := fs.appendExtents(h, block, rest)
			return written + more, err
		}
		filePos = extentEnd
		lastBlock = block
		block = dn.NextPtr
	}
	return fs.appendExtents(h, lastBlock, buf)
}

// appendExtents allocates and fills fresh extents for data, attaching
// the first one after afterBlock (or, if afterBlock is 0, as the file's
// first extent).
func (fs *FileSystem) appendExtents(h *Handle, afterBlock uint32, data []byte) (int, error) {
	var written int
	prev := afterBlock
	for len(data) > 0 {
		blockNo, capacity, err := fs.allocateExtent(uint32(len(data)))
		if err != nil {
			return written, err
		}
		n := int(capacity)
		if n > len(data) {
			n = len(data)
		}
		w, err := fs.writableStorage()
		if err != nil {
			return written, err
		}
		wn, err := w.WriteAt(data[:n], fs.dev.Offset(blockNo)+codec.DataNodeHeaderSize)
		if err != nil {
			return written, fmt.Errorf("%w: %v", ErrIO, err)
		}
		node := codec.DataNode{NextPtr: 0, Len: uint32(wn)}
		if err := fs.writeDataNode(blockNo, &node); err != nil {
			return written, err
		}

		if prev == 0 {
			h.Node.DataPtr = blockNo
			if err := fs.writeEntry(h.Block, &h.Node); err != nil {
				return written, err
			}
		} else {
			prevNode, err := fs.readDataNode(prev)
			if err != nil {
				return written, err
			}
			prevNode.NextPtr = blockNo
			if err := fs.writeDataNode(prev, prevNode); err != nil {
				return written, err
			}
		}

		written += wn
		data = data[wn:]
		prev = blockNo
	}
	return written, nil
}

// truncate implements the only supported size argument, 0: it walks and
// frees every extent in the chain and clears the entry's data pointer
// (spec §4.5, "Truncation"). Any other size is rejected; NanoFS cannot
// grow a file by truncation and cannot shrink to a non-zero length
// without choosing an arbitrary split point the format has no
// vocabulary for.
func (fs *FileSystem) truncate(h *Handle, size int64) error {
	if size != 0 {
		return ErrUnsupported
	}
	blockSize := fs.dev.BlockSize()
	block := h.Node.DataPtr
	for block != 0 {
		dn, err := fs.readDataNode(block)
		if err != nil {
			return err
		}
		next := dn.NextPtr
		footprint := codec.Footprint(dn.Len, blockSize)
		capacity := uint32(footprint*blockSize) - codec.DataNodeHeaderSize
		if err := fs.freeBlock(block, capacity); err != nil {
			return err
		}
		block = next
	}
	h.Node.DataPtr = 0
	return fs.writeEntry(h.Block, &h.Node)
}
