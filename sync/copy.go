// Package sync seeds a NanoFS image from a host directory tree, the same
// role go-diskfs's sync package plays for its own filesystem
// implementations, trimmed to what NanoFS can actually represent: no
// symlinks, no timestamps, no permission bits (spec non-goals).
package sync

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/paulino/nanofs-fuse/filesystem"
)

// excludedPaths are never copied, regardless of source filesystem.
var excludedPaths = map[string]bool{
	"lost+found":                true,
	".DS_Store":                 true,
	"System Volume Information": true,
}

const maxCopyAllSize = 64 * 1024 * 1024

// CopyFileSystem copies files and directories from a source fs.FS to a
// destination filesystem.FileSystem, preserving structure and contents.
// Symlinks and anything else that is not a plain file or directory are
// skipped: NanoFS has no node kind to represent them.
func CopyFileSystem(src fs.FS, dst filesystem.FileSystem) error {
	return copyDir(src, dst, ".")
}

func copyDir(src fs.FS, dst filesystem.FileSystem, dir string) error {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if excludedPaths[name] {
			continue
		}

		p := name
		if dir != "." {
			p = path.Join(dir, name)
		}
		dstPath := "/" + p

		if entry.IsDir() {
			if err := dst.Mkdir(dstPath); err != nil {
				return fmt.Errorf("create dir %s: %w", dstPath, err)
			}
			if err := copyDir(src, dst, p); err != nil {
				return fmt.Errorf("copy dir %s: %w", p, err)
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			// symlinks and anything else NanoFS cannot represent.
			continue
		}

		if err := copyOneFile(src, dst, p, dstPath, info); err != nil {
			return fmt.Errorf("copy file %s: %w", p, err)
		}
	}

	return nil
}

func copyOneFile(src fs.FS, dst filesystem.FileSystem, srcPath, dstPath string, info fs.FileInfo) error {
	in, err := src.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := dst.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if info.Size() <= maxCopyAllSize {
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		n, err := out.Write(data)
		if err != nil {
			return err
		}
		if n != len(data) {
			return io.ErrShortWrite
		}
		return nil
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			written := 0
			for written < n {
				w, werr := out.Write(buf[written:n])
				if werr != nil {
					return werr
				}
				if w == 0 {
					return io.ErrShortWrite
				}
				written += w
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return nil
}
