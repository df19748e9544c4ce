package nanofs

import (
	"fmt"
	"strings"

	"github.com/paulino/nanofs-fuse/codec"
)

// splitPath tokenizes an absolute path into its non-empty components. A
// lone "/" yields a nil slice (the root itself). A trailing slash is
// tolerated and produces the same tokens as without it (spec §4.4, "Path
// resolution").
func splitPath(p string) ([]string, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("%w: path %q is not absolute", ErrInvalid, p)
	}
	trimmed := strings.TrimPrefix(p, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: path %q has an empty component", ErrInvalid, p)
		}
	}
	return parts, nil
}

// splitParentBase divides an absolute path into its parent directory and
// final component, e.g. "/a/b/c" -> ("/a/b", "c") and "/x" -> ("/", "x").
func splitParentBase(p string) (parent, base string) {
	trimmed := strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/", strings.TrimPrefix(trimmed, "/")
	}
	return trimmed[:idx], trimmed[idx+1:]
}

// resolve walks the tree from the root along path, following the sibling
// chain at each level to find the named child (spec §4.4). Every
// non-final component must resolve to a directory; the final component
// may be either kind.
func (fs *FileSystem) resolve(path string) (*Handle, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur, err := fs.rootHandle()
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		if len(part) > codec.MaxFName {
			return nil, ErrNotFound
		}
		if !cur.IsDir() {
			return nil, ErrNotFound
		}
		next, err := fs.lookupChild(cur.Node.DataPtr, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// lookupChild walks a directory's sibling chain, starting at dataPtr,
// for an entry named name.
func (fs *FileSystem) lookupChild(dataPtr uint32, name string) (*Handle, error) {
	block := dataPtr
	for block != 0 {
		e, err := fs.readEntry(block)
		if err != nil {
			return nil, err
		}
		if e.FName == name {
			return &Handle{Block: block, Node: *e}, nil
		}
		block = e.NextPtr
	}
	return nil, ErrNotFound
}

// list returns every child of a directory handle, in sibling-chain
// order.
func (fs *FileSystem) list(dir *Handle) ([]Handle, error) {
	var out []Handle
	block := dir.Node.DataPtr
	for block != 0 {
		e, err := fs.readEntry(block)
		if err != nil {
			return nil, err
		}
		out = append(out, Handle{Block: block, Node: *e})
		block = e.NextPtr
	}
	return out, nil
}

// create allocates a new directory node at fullPath, either a
// subdirectory or an empty regular file depending on isDir (spec §4.4,
// "Creating an entry"). The new node is appended to the tail of its
// parent's sibling chain.
func (fs *FileSystem) create(fullPath string, isDir bool) (*Handle, error) {
	parentPath, base := splitParentBase(fullPath)
	if base == "" {
		return nil, ErrInvalid
	}
	if len(base) > codec.MaxFName {
		return nil, fmt.Errorf("%w: name %d bytes exceeds max of %d", ErrInvalid, len(base), codec.MaxFName)
	}
	parent, err := fs.resolve(parentPath)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrInvalid, parentPath)
	}
	if _, err := fs.lookupChild(parent.Node.DataPtr, base); err == nil {
		return nil, ErrAlreadyExists
	} else if err != ErrNotFound {
		return nil, err
	}

	block, err := fs.allocateNode()
	if err != nil {
		return nil, err
	}
	var flags uint8
	if isDir {
		flags = codec.FlagDir
	}
	entry := codec.DirEntry{Flags: flags, FName: base}
	if err := fs.appendChild(parent, block); err != nil {
		return nil, err
	}
	if err := fs.writeEntry(block, &entry); err != nil {
		return nil, err
	}
	return &Handle{Block: block, Node: entry}, nil
}

// appendChild links block onto the tail of parent's sibling chain.
func (fs *FileSystem) appendChild(parent *Handle, block uint32) error {
	if parent.Node.DataPtr == 0 {
		parent.Node.DataPtr = block
		return fs.writeEntry(parent.Block, &parent.Node)
	}
	tailBlock := parent.Node.DataPtr
	for {
		e, err := fs.readEntry(tailBlock)
		if err != nil {
			return err
		}
		if e.NextPtr == 0 {
			e.NextPtr = block
			return fs.writeEntry(tailBlock, e)
		}
		tailBlock = e.NextPtr
	}
}

// remove unlinks the named entry from its parent's sibling chain and
// returns its node block to the free list (spec §4.4, "Removing an
// entry"). A non-empty directory is unlinked the same as an empty one:
// NanoFS performs no emptiness check before rmdir, so removing a
// directory with children orphans them rather than rejecting the call.
func (fs *FileSystem) remove(fullPath string) error {
	parentPath, base := splitParentBase(fullPath)
	parent, err := fs.resolve(parentPath)
	if err != nil {
		return err
	}
	target, err := fs.lookupChild(parent.Node.DataPtr, base)
	if err != nil {
		return err
	}

	if !target.IsDir() {
		if err := fs.truncate(target, 0); err != nil {
			return err
		}
	}

	if err := fs.unlinkChild(parent, target.Block, target.Node.NextPtr); err != nil {
		return err
	}
	return fs.freeBlock(target.Block, uint32(fs.dev.BlockSize()-codec.DataNodeHeaderSize))
}

// unlinkChild removes block from parent's sibling chain, splicing its
// successor in its place.
func (fs *FileSystem) unlinkChild(parent *Handle, block, successor uint32) error {
	if parent.Node.DataPtr == block {
		parent.Node.DataPtr = successor
		return fs.writeEntry(parent.Block, &parent.Node)
	}
	predBlock := parent.Node.DataPtr
	for predBlock != 0 {
		e, err := fs.readEntry(predBlock)
		if err != nil {
			return err
		}
		if e.NextPtr == block {
			e.NextPtr = successor
			return fs.writeEntry(predBlock, e)
		}
		predBlock = e.NextPtr
	}
	return fmt.Errorf("%w: block %d not found in its parent's sibling chain", ErrCorrupt, block)
}
