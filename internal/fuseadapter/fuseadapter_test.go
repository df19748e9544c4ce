package fuseadapter

import (
	"context"
	"testing"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/paulino/nanofs-fuse/filesystem/nanofs"
	"github.com/paulino/nanofs-fuse/testhelper"
)

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	storage := testhelper.NewFileImpl(1 << 20)
	nfs, err := nanofs.Create(storage, 1<<20, "vol")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return New(nfs)
}

func TestMkDirAndLookUp(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	mk := &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "docs"}
	if err := fs.MkDir(ctx, mk); err != nil {
		t.Fatalf("MkDir: %v", err)
	}
	if !mk.Entry.Attributes.Mode.IsDir() {
		t.Fatalf("expected directory mode, got %v", mk.Entry.Attributes.Mode)
	}

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "docs"}
	if err := fs.LookUpInode(ctx, lookup); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}
	if lookup.Entry.Child != mk.Entry.Child {
		t.Fatalf("inode mismatch: mkdir=%d lookup=%d", mk.Entry.Child, lookup.Entry.Child)
	}
}

func TestCreateWriteReadFile(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	create := &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "f"}
	if err := fs.CreateFile(ctx, create); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	write := &fuseops.WriteFileOp{Handle: create.Handle, Offset: 0, Data: []byte("hello world")}
	if err := fs.WriteFile(ctx, write); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	read := &fuseops.ReadFileOp{Handle: create.Handle, Offset: 0, Dst: make([]byte, 11)}
	if err := fs.ReadFile(ctx, read); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(read.Dst[:read.BytesRead]) != "hello world" {
		t.Fatalf("content = %q", read.Dst[:read.BytesRead])
	}

	release := &fuseops.ReleaseFileHandleOp{Handle: create.Handle}
	if err := fs.ReleaseFileHandle(ctx, release); err != nil {
		t.Fatalf("ReleaseFileHandle: %v", err)
	}
}

func TestReadDirListsChildren(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "a"}); err != nil {
		t.Fatalf("MkDir: %v", err)
	}
	if err := fs.CreateFile(ctx, &fuseops.CreateFileOp{Parent: fuseops.RootInodeID, Name: "b"}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	dst := make([]byte, 4096)
	op := &fuseops.ReadDirOp{Inode: fuseops.RootInodeID, Offset: 0, Dst: dst}
	if err := fs.ReadDir(ctx, op); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if op.BytesRead == 0 {
		t.Fatal("expected a non-empty directory listing")
	}
}

func TestRmDirDoesNotCheckEmptiness(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: fuseops.RootInodeID, Name: "d"}); err != nil {
		t.Fatalf("MkDir: %v", err)
	}
	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "d"}
	if err := fs.LookUpInode(ctx, lookup); err != nil {
		t.Fatalf("LookUpInode: %v", err)
	}
	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: lookup.Entry.Child, Name: "child"}); err != nil {
		t.Fatalf("MkDir nested: %v", err)
	}

	if err := fs.RmDir(ctx, &fuseops.RmDirOp{Parent: fuseops.RootInodeID, Name: "d"}); err != nil {
		t.Fatalf("RmDir non-empty: %v", err)
	}
}

func TestUnsupportedOperationsReturnErrors(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	if err := fs.Rename(ctx, &fuseops.RenameOp{}); err == nil {
		t.Fatal("expected Rename to fail")
	}
	if err := fs.CreateSymlink(ctx, &fuseops.CreateSymlinkOp{}); err == nil {
		t.Fatal("expected CreateSymlink to fail")
	}
	if err := fs.SetXattr(ctx, &fuseops.SetXattrOp{}); err == nil {
		t.Fatal("expected SetXattr to fail")
	}
}
