package nanofs

import "github.com/paulino/nanofs-fuse/codec"

// allocateNode takes one block from the free list's head, for a
// single-block directory node (spec §4.3, "Allocating a directory node").
// A one-block head is unlinked whole; a larger head gives up its first
// block, and its header, shrunk by one block, is rewritten one block
// further on as the new head.
func (fs *FileSystem) allocateNode() (uint32, error) {
	sb := &fs.dev.Superblock
	if sb.FreePtr == 0 {
		return 0, ErrNoSpace
	}
	blockSize := fs.dev.BlockSize()
	head, err := fs.readDataNode(sb.FreePtr)
	if err != nil {
		return 0, err
	}
	capacity := int(head.Len) + codec.DataNodeHeaderSize
	if capacity < blockSize {
		// Impossible if every free node obeys the footprint invariant
		// (spec §8 I5): a free node is never smaller than one block.
		return 0, ErrNoSpace
	}

	allocated := sb.FreePtr
	if capacity == blockSize {
		sb.FreePtr = head.NextPtr
	} else {
		newHead := sb.FreePtr + 1
		shrunk := codec.DataNode{NextPtr: head.NextPtr, Len: head.Len - uint32(blockSize)}
		if err := fs.writeDataNode(newHead, &shrunk); err != nil {
			return 0, err
		}
		sb.FreePtr = newHead
	}
	if err := fs.dev.WriteSuperblock(); err != nil {
		return 0, err
	}
	return allocated, nil
}

// allocateExtent takes enough blocks from the free list's head to hold
// requestedPayload bytes of file data (spec §4.3, "Allocating a file
// extent"). It returns the block number of the new extent and the usable
// payload capacity of the blocks actually taken. Normally that is the
// payload of the n blocks requestedPayload rounds up to, which may exceed
// requestedPayload. A head run of n blocks or fewer is taken whole, and
// then the capacity is that run's payload, which is less than
// requestedPayload when the run is shorter than n blocks.
func (fs *FileSystem) allocateExtent(requestedPayload uint32) (blockNo uint32, capacity uint32, err error) {
	sb := &fs.dev.Superblock
	if sb.FreePtr == 0 {
		return 0, 0, ErrNoSpace
	}
	blockSize := fs.dev.BlockSize()
	n := codec.Footprint(requestedPayload, blockSize)

	head, err := fs.readDataNode(sb.FreePtr)
	if err != nil {
		return 0, 0, err
	}
	h := codec.Footprint(head.Len, blockSize)

	blockNo = sb.FreePtr
	if h <= n {
		capacity = uint32(h*blockSize) - codec.DataNodeHeaderSize
		sb.FreePtr = head.NextPtr
	} else {
		capacity = uint32(n*blockSize) - codec.DataNodeHeaderSize
		newHead := sb.FreePtr + uint32(n)
		shrunk := codec.DataNode{NextPtr: head.NextPtr, Len: head.Len - uint32(n*blockSize)}
		if err := fs.writeDataNode(newHead, &shrunk); err != nil {
			return 0, 0, err
		}
		sb.FreePtr = newHead
	}
	if err := fs.dev.WriteSuperblock(); err != nil {
		return 0, 0, err
	}
	return blockNo, capacity, nil
}

// freeBlock prepends a freed block or extent back onto the head of the
// free list (spec §4.3, "Freeing"). capacity is the payload capacity of
// the blocks being returned, not the number of live bytes they held.
func (fs *FileSystem) freeBlock(blockNo uint32, capacity uint32) error {
	sb := &fs.dev.Superblock
	node := codec.DataNode{NextPtr: sb.FreePtr, Len: capacity}
	if err := fs.writeDataNode(blockNo, &node); err != nil {
		return err
	}
	sb.FreePtr = blockNo
	return fs.dev.WriteSuperblock()
}
