//go:build !linux && !darwin

package device

import (
	"errors"
	"os"
)

func getSectorSizes(f *os.File) (logical, physical int64, err error) {
	return 0, 0, errors.New("device: block device sector sizing not supported on this platform")
}

func deviceByteSize(f *os.File) (int64, error) {
	return 0, errors.New("device: block device sizing not supported on this platform")
}
