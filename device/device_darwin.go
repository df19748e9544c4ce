//go:build darwin

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// these constants are part of the Darwin ioctl ABI but aren't exposed by
// golang.org/x/sys/unix, the same gap go-diskfs's diskfs_darwin.go works
// around.
const (
	dkIOCGetBlockSize         = 0x40046418
	dkIOCGetPhysicalBlockSize = 0x4004644D
	dkIOCGetBlockCount        = 0x40086419
)

func getSectorSizes(f *os.File) (logical, physical int64, err error) {
	fd := int(f.Fd())
	l, err := unix.IoctlGetInt(fd, dkIOCGetBlockSize)
	if err != nil {
		return 0, 0, fmt.Errorf("device: unable to get logical sector size: %w", err)
	}
	p, err := unix.IoctlGetInt(fd, dkIOCGetPhysicalBlockSize)
	if err != nil {
		return 0, 0, fmt.Errorf("device: unable to get physical sector size: %w", err)
	}
	return int64(l), int64(p), nil
}

func deviceByteSize(f *os.File) (int64, error) {
	fd := int(f.Fd())
	blocks, err := unix.IoctlGetInt(fd, dkIOCGetBlockCount)
	if err != nil {
		return 0, fmt.Errorf("device: unable to get block count: %w", err)
	}
	logical, _, err := getSectorSizes(f)
	if err != nil {
		return 0, err
	}
	return int64(blocks) * logical, nil
}
