package nanofs

import "github.com/paulino/nanofs-fuse/codec"

// Handle pairs a directory node's block number with its decoded contents.
// It is the engine's currency for "a place in the tree": path resolution,
// directory listing, and file I/O all pass handles rather than bare block
// numbers so that a caller who mutates Node knows which block to write it
// back to.
type Handle struct {
	Block uint32
	Node  codec.DirEntry
}

// IsDir reports whether the handle refers to a directory node.
func (h *Handle) IsDir() bool {
	return h.Node.IsDir()
}
