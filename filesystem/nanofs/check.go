package nanofs

import (
	"fmt"

	"github.com/paulino/nanofs-fuse/codec"
	"github.com/paulino/nanofs-fuse/util/bitmap"
)

// CheckReport summarizes a full-device consistency sweep (spec §8's
// structural invariant: every block belongs to exactly one of the free
// list or a reachable allocated chain).
type CheckReport struct {
	TotalBlocks       int
	ReachableBlocks   int
	FreeListBlocks    int
	UnaccountedBlocks []uint32
	DoubleClaimed     []uint32
}

// OK reports whether the sweep found no unaccounted or double-claimed
// blocks.
func (r *CheckReport) OK() bool {
	return len(r.UnaccountedBlocks) == 0 && len(r.DoubleClaimed) == 0
}

// Check walks the superblock, the whole directory tree, every file's
// extent chain, and the free list, and confirms each device block is
// claimed by exactly one of them. It is read-only: a stray result never
// mutates the image, it only reports.
func (fs *FileSystem) Check() (*CheckReport, error) {
	total := int(fs.dev.Superblock.FSSize)
	bm := bitmap.NewBits(total)
	report := &CheckReport{TotalBlocks: total}

	claim := func(block uint32, span int) {
		for i := 0; i < span; i++ {
			loc := int(block) + i
			if loc >= total {
				report.UnaccountedBlocks = append(report.UnaccountedBlocks, block)
				return
			}
			set, err := bm.IsSet(loc)
			if err == nil && set {
				report.DoubleClaimed = append(report.DoubleClaimed, uint32(loc))
				continue
			}
			_ = bm.Set(loc)
		}
	}

	claim(0, 1) // the superblock itself.

	visitedNodes := make(map[uint32]bool)
	var walkDir func(block uint32) error
	walkDir = func(block uint32) error {
		for block != 0 {
			if visitedNodes[block] {
				return fmt.Errorf("%w: directory chain revisits block %d", ErrCorrupt, block)
			}
			visitedNodes[block] = true
			claim(block, 1)
			e, err := fs.readEntry(block)
			if err != nil {
				return err
			}
			if e.IsDir() {
				if err := walkDir(e.DataPtr); err != nil {
					return err
				}
			} else {
				if err := fs.walkExtents(e.DataPtr, claim); err != nil {
					return err
				}
			}
			block = e.NextPtr
		}
		return nil
	}
	if err := walkDir(fs.dev.Superblock.RootPtr); err != nil {
		return nil, err
	}
	report.ReachableBlocks = len(visitedNodes)

	block := fs.dev.Superblock.FreePtr
	visitedFree := make(map[uint32]bool)
	blockSize := fs.dev.BlockSize()
	for block != 0 {
		if visitedFree[block] {
			return nil, fmt.Errorf("%w: free list revisits block %d", ErrCorrupt, block)
		}
		visitedFree[block] = true
		dn, err := fs.readDataNode(block)
		if err != nil {
			return nil, err
		}
		footprint := codec.Footprint(dn.Len, blockSize)
		claim(block, footprint)
		report.FreeListBlocks += footprint
		block = dn.NextPtr
	}

	for i := 0; i < total; i++ {
		set, err := bm.IsSet(i)
		if err != nil {
			return nil, err
		}
		if !set {
			report.UnaccountedBlocks = append(report.UnaccountedBlocks, uint32(i))
		}
	}

	return report, nil
}

// walkExtents visits every block in a file's extent chain and calls
// claim with each extent's block number and footprint.
func (fs *FileSystem) walkExtents(dataPtr uint32, claim func(block uint32, span int)) error {
	block := dataPtr
	blockSize := fs.dev.BlockSize()
	visited := make(map[uint32]bool)
	for block != 0 {
		if visited[block] {
			return fmt.Errorf("%w: extent chain revisits block %d", ErrCorrupt, block)
		}
		visited[block] = true
		dn, err := fs.readDataNode(block)
		if err != nil {
			return err
		}
		footprint := codec.Footprint(dn.Len, blockSize)
		claim(block, footprint)
		block = dn.NextPtr
	}
	return nil
}
