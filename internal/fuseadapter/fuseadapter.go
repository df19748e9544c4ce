// Package fuseadapter bridges a mounted filesystem/nanofs.FileSystem to
// github.com/jacobsa/fuse's fuseutil.FileSystem interface (spec §1, "the
// userspace-filesystem bridge"), the same way distr1-distri's
// internal/fuse.fuseFS bridges SquashFS packages to FUSE.
//
// Unlike distr1-distri's read-only bridge, NanoFS backs a writable image:
// MkDir, CreateFile, RmDir, Unlink, WriteFile and truncation all reach
// through to the engine. Operations the engine has no primitive for
// (hard/symbolic links, extended attributes, rename, and any attribute
// change other than truncation to zero) return ENOSYS or EPERM rather
// than being emulated (spec §9, Non-goals).
//
// The bridge keeps no locking of its own beyond a single mutex guarding
// its inode and handle tables: the engine itself is not safe for
// concurrent use (spec §5), so cmd/nanofuse always mounts this adapter
// single-threaded.
package fuseadapter

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/paulino/nanofs-fuse/filesystem"
	"github.com/paulino/nanofs-fuse/filesystem/nanofs"
)

// rootPath is the NanoFS path corresponding to fuseops.RootInodeID.
const rootPath = "/"

// FileSystem adapts a *nanofs.FileSystem to fuseutil.FileSystem. Embedding
// NotImplementedFileSystem means every FUSE op we do not override answers
// ENOSYS, which is the correct behavior for every non-goal operation we
// have not listed explicitly below (e.g. Fallocate).
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	nfs *nanofs.FileSystem

	mu         sync.Mutex
	pathToNode map[string]fuseops.InodeID
	nodeToPath map[fuseops.InodeID]string
	nextInode  fuseops.InodeID

	handles    map[fuseops.HandleID]filesystem.File
	nextHandle fuseops.HandleID
}

// New wraps nfs for serving over FUSE. The mountpoint's root directory is
// always nfs's "/" (NanoFS has no concept of sub-mounting a subtree).
func New(nfs *nanofs.FileSystem) *FileSystem {
	fs := &FileSystem{
		nfs:        nfs,
		pathToNode: make(map[string]fuseops.InodeID),
		nodeToPath: make(map[fuseops.InodeID]string),
		nextInode:  fuseops.RootInodeID,
		handles:    make(map[fuseops.HandleID]filesystem.File),
	}
	fs.pathToNode[rootPath] = fuseops.RootInodeID
	fs.nodeToPath[fuseops.RootInodeID] = rootPath
	return fs
}

// childPath joins a directory's NanoFS path with a child name.
func childPath(dir, name string) string {
	if dir == rootPath {
		return rootPath + name
	}
	return dir + "/" + name
}

// splitParentBase divides an absolute NanoFS path into (parent, base),
// e.g. "/a/b" -> ("/a", "b") and "/a" -> ("/", "a").
func splitParentBase(p string) (parent, base string) {
	if p == rootPath {
		return "", ""
	}
	idx := strings.LastIndex(p, "/")
	if idx == 0 {
		return rootPath, p[1:]
	}
	return p[:idx], p[idx+1:]
}

// pathFor returns the NanoFS path an inode was allocated for.
func (fs *FileSystem) pathFor(inode fuseops.InodeID) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.nodeToPath[inode]
	return p, ok
}

// inodeFor returns the inode allocated for path, allocating a new one if
// this is the first time the bridge has seen it (spec §4.6's adapter
// layer owns no persistent naming scheme of its own, so inode numbers are
// assigned lazily and never reused within a mount).
func (fs *FileSystem) inodeFor(path string) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id, ok := fs.pathToNode[path]; ok {
		return id
	}
	fs.nextInode++
	id := fs.nextInode
	fs.pathToNode[path] = id
	fs.nodeToPath[id] = path
	return id
}

func (fs *FileSystem) allocHandle(f filesystem.File) fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextHandle++
	id := fs.nextHandle
	fs.handles[id] = f
	return id
}

func (fs *FileSystem) handleFor(id fuseops.HandleID) (filesystem.File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.handles[id]
	return f, ok
}

func (fs *FileSystem) releaseHandle(id fuseops.HandleID) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.handles, id)
}

// statPath stats the node at path without requiring a full traversal
// helper from the engine package: it lists path's parent and finds path's
// own entry, or (for the root, which has no parent to list) synthesizes a
// directory entry since NanoFS never stores attributes for the root node
// beyond its label.
func (fs *FileSystem) statPath(path string) (os.FileInfo, error) {
	if path == rootPath {
		return rootInfo{}, nil
	}
	parent, base := splitParentBase(path)
	entries, err := fs.nfs.ReadDir(parent)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name() == base {
			return e, nil
		}
	}
	return nil, nanofs.ErrNotFound
}

// rootInfo is a synthetic os.FileInfo for the mount root.
type rootInfo struct{}

func (rootInfo) Name() string       { return "/" }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() os.FileMode  { return os.ModeDir | 0o777 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() interface{}   { return nil }

func attrsFromInfo(info os.FileInfo) fuseops.InodeAttributes {
	mode := os.FileMode(0o666)
	if info.IsDir() {
		mode = os.ModeDir | 0o777
	}
	return fuseops.InodeAttributes{
		Size:  uint64(info.Size()),
		Nlink: 1,
		Mode:  mode,
	}
}

func errnoFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nanofs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, nanofs.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, nanofs.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, nanofs.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, nanofs.ErrUnsupported):
		return syscall.ENOSYS
	default:
		return syscall.EIO
	}
}

// StatFS reports synthetic filesystem-wide statistics (spec §4.6's
// free_bytes operation is the only whole-device statistic the engine
// tracks; everything else here is a reasonable constant).
func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	const blockSize = 512
	op.BlockSize = blockSize
	free, err := fs.nfs.FreeBytes()
	if err != nil {
		return errnoFor(err)
	}
	op.BlocksFree = uint64(free) / blockSize
	op.BlocksAvailable = op.BlocksFree
	op.IoSize = 65536
	return nil
}

// LookUpInode resolves op.Name within the directory at op.Parent.
func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	info, err := fs.statPath(path)
	if err != nil {
		return errnoFor(err)
	}
	op.Entry.Child = fs.inodeFor(path)
	op.Entry.Attributes = attrsFromInfo(info)
	return nil
}

// GetInodeAttributes reports the attributes of op.Inode.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	path, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	info, err := fs.statPath(path)
	if err != nil {
		return errnoFor(err)
	}
	op.Attributes = attrsFromInfo(info)
	return nil
}

// SetInodeAttributes only supports truncation to zero length (spec §9's
// "no partial truncation"); any attempt to change mode, ownership, or
// timestamps is rejected rather than silently ignored, matching the
// spec's non-goal list.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	if op.Mode != nil || op.Atime != nil || op.Mtime != nil {
		return syscall.EPERM
	}
	path, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if op.Size != nil {
		if *op.Size != 0 {
			return syscall.ENOSYS
		}
		f, err := fs.nfs.OpenFile(path, os.O_WRONLY|os.O_TRUNC)
		if err != nil {
			return errnoFor(err)
		}
		f.Close()
	}
	info, err := fs.statPath(path)
	if err != nil {
		return errnoFor(err)
	}
	op.Attributes = attrsFromInfo(info)
	return nil
}

// ForgetInode drops the bridge's memory of an inode. NanoFS nodes are
// addressed by path everywhere else in the engine, so forgetting one here
// costs nothing beyond the lookup table entry.
func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if op.Inode == fuseops.RootInodeID {
		return nil
	}
	if path, ok := fs.nodeToPath[op.Inode]; ok {
		delete(fs.nodeToPath, op.Inode)
		delete(fs.pathToNode, path)
	}
	return nil
}

// MkDir creates a new directory (spec §4.4).
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if err := fs.nfs.Mkdir(path); err != nil {
		return errnoFor(err)
	}
	info, err := fs.statPath(path)
	if err != nil {
		return errnoFor(err)
	}
	op.Entry.Child = fs.inodeFor(path)
	op.Entry.Attributes = attrsFromInfo(info)
	return nil
}

// MkNode is not supported: NanoFS has no device-special-file concept
// (spec non-goals).
func (fs *FileSystem) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	return syscall.ENOSYS
}

// CreateFile creates and opens a new regular file in one FUSE round trip.
func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	f, err := fs.nfs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR)
	if err != nil {
		return errnoFor(err)
	}
	info, err := fs.statPath(path)
	if err != nil {
		f.Close()
		return errnoFor(err)
	}
	op.Entry.Child = fs.inodeFor(path)
	op.Entry.Attributes = attrsFromInfo(info)
	op.Handle = fs.allocHandle(f)
	return nil
}

// CreateLink is not supported: every NanoFS node has exactly one parent
// (spec non-goals, no hard links).
func (fs *FileSystem) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	return syscall.ENOSYS
}

// CreateSymlink is not supported: NanoFS has no symlink flag or
// target-storage convention (spec non-goals).
func (fs *FileSystem) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	return syscall.ENOSYS
}

// Rename is not supported; see filesystem/nanofs.FileSystem.Rename for
// why the engine has no primitive for it.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	return syscall.ENOSYS
}

// RmDir removes an empty or non-empty directory (spec §9: NanoFS never
// checks emptiness, so the kernel's own "directory not empty" convention
// does not apply here — removing a populated directory orphans its
// children rather than failing).
func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if err := fs.nfs.Remove(path); err != nil {
		return errnoFor(err)
	}
	return nil
}

// Unlink removes a file.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	parentPath, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	path := childPath(parentPath, op.Name)
	if err := fs.nfs.Remove(path); err != nil {
		return errnoFor(err)
	}
	return nil
}

// OpenDir has nothing to validate beyond the inode existing; listing
// happens fresh in ReadDir on every call since the engine keeps no
// directory-handle state of its own.
func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	if _, ok := fs.pathFor(op.Inode); !ok {
		return syscall.ENOENT
	}
	return nil
}

// ReadDir lists the directory at op.Inode starting at op.Offset, the way
// distr1-distri's fuseFS.ReadDir walks its own in-memory directory table
// into a fuseutil.Dirent buffer.
func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	path, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	children, err := fs.nfs.ReadDir(path)
	if err != nil {
		return errnoFor(err)
	}
	if op.Offset > fuseops.DirOffset(len(children)) {
		return syscall.EIO
	}
	for i, c := range children[op.Offset:] {
		childInode := fs.inodeFor(childPath(path, c.Name()))
		direntType := fuseutil.DT_File
		if c.IsDir() {
			direntType = fuseutil.DT_Directory
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: op.Offset + fuseops.DirOffset(i) + 1,
			Inode:  childInode,
			Name:   c.Name(),
			Type:   direntType,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// ReleaseDirHandle is a no-op: OpenDir allocates no handle state.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

// OpenFile opens a handle for subsequent ReadFile/WriteFile calls. NanoFS
// has no read-only/write-only distinction at the node level (spec §4.6),
// so every open is read-write regardless of the flags the kernel passed.
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	path, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	f, err := fs.nfs.OpenFile(path, os.O_RDWR)
	if err != nil {
		return errnoFor(err)
	}
	op.Handle = fs.allocHandle(f)
	return nil
}

// ReadFile reads op.Dst's length of bytes starting at op.Offset.
func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	f, ok := fs.handleFor(op.Handle)
	if !ok {
		return syscall.EIO
	}
	if _, err := f.Seek(op.Offset, io.SeekStart); err != nil {
		return syscall.EIO
	}
	n, err := f.Read(op.Dst)
	op.BytesRead = n
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errnoFor(err)
	}
	return nil
}

// WriteFile writes op.Data at op.Offset. FUSE requires writes to be
// all-or-nothing; a short write is reported as EIO rather than silently
// truncated (spec §7: "a write that fails partway returns the number of
// bytes committed... it does not roll back" — the adapter cannot recover
// from that here, so it surfaces the failure).
func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	f, ok := fs.handleFor(op.Handle)
	if !ok {
		return syscall.EIO
	}
	if _, err := f.Seek(op.Offset, io.SeekStart); err != nil {
		return syscall.EIO
	}
	n, err := f.Write(op.Data)
	if err != nil {
		return errnoFor(err)
	}
	if n != len(op.Data) {
		return syscall.EIO
	}
	return nil
}

// SyncFile and FlushFile are no-ops: every write already lands on the
// backing storage before returning (spec §5, "no operation suspends").
func (fs *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return nil
}

func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

// ReleaseFileHandle closes the open file and forgets its handle.
func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	f, ok := fs.handleFor(op.Handle)
	if !ok {
		return nil
	}
	fs.releaseHandle(op.Handle)
	return f.Close()
}

// ReadSymlink is not supported: NanoFS never creates a symlink-flagged
// node, so no inode this bridge hands out is ever one.
func (fs *FileSystem) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	return syscall.ENOSYS
}

// GetXattr, ListXattr, SetXattr and RemoveXattr are not supported: NanoFS
// stores no attribute streams (spec non-goals).
func (fs *FileSystem) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	return syscall.ENOSYS
}

func (fs *FileSystem) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	return syscall.ENOSYS
}

func (fs *FileSystem) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	return syscall.ENOSYS
}

func (fs *FileSystem) RemoveXattr(ctx context.Context, op *fuseops.RemoveXattrOp) error {
	return syscall.ENOSYS
}

// Destroy closes every file handle still outstanding at unmount time.
func (fs *FileSystem) Destroy() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, f := range fs.handles {
		f.Close()
		delete(fs.handles, id)
	}
}
