//go:build linux

package device

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// these mirror go-diskfs's diskfs.go constants for the Linux block ioctls.
const (
	blkSSZGet = 0x1268
	blkBSZGet = 0x80081270
)

// getSectorSizes returns the logical and physical sector sizes for a block
// device, the same way go-diskfs's diskfs.go getSectorSizes does.
func getSectorSizes(f *os.File) (logical, physical int64, err error) {
	fd := int(f.Fd())
	l, err := unix.IoctlGetInt(fd, blkSSZGet)
	if err != nil {
		return 0, 0, fmt.Errorf("device: unable to get logical sector size: %w", err)
	}
	p, err := unix.IoctlGetInt(fd, blkBSZGet)
	if err != nil {
		return 0, 0, fmt.Errorf("device: unable to get physical sector size: %w", err)
	}
	return int64(l), int64(p), nil
}

// deviceByteSize reads the kernel's reported block count for a device node
// from sysfs, the same way diskfs.go's initDisk does for Linux block
// devices, and multiplies by the kernel's fixed 512-byte sector unit.
func deviceByteSize(f *os.File) (int64, error) {
	sizePath := fmt.Sprintf("/sys/class/block/%s/size", path.Base(f.Name()))
	raw, err := os.ReadFile(sizePath)
	if err != nil {
		return 0, fmt.Errorf("device: could not read size of %s from kernel: %w", f.Name(), err)
	}
	sectors, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("device: invalid size reported for %s: %w", f.Name(), err)
	}
	return sectors * 512, nil
}
