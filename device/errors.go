package device

import "errors"

// Error classes surfaced when opening a device (spec §4.2, §7). These are
// distinct from the directory/file engine errors in filesystem/nanofs,
// matching the spec's requirement that device-open failures be
// distinguishable from engine-level failures.
var (
	// ErrIO is returned when a device read or write fails or returns short.
	ErrIO = errors.New("device: I/O error")
	// ErrBadMagic is returned when the superblock magic does not match.
	ErrBadMagic = errors.New("device: not a nanofs image (bad magic)")
	// ErrUnsupportedBlockSize is returned when the block_size field does not
	// map to a known shift, or maps to the reserved code 0.
	ErrUnsupportedBlockSize = errors.New("device: unsupported block size")
	// ErrUnsupportedRevision is returned when the revision field is not 0.
	ErrUnsupportedRevision = errors.New("device: unsupported format revision")
)
