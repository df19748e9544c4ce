package nanofs

import "errors"

// Engine-level errors (spec §7), distinct from the device package's
// handle-level errors: these describe failures in path resolution, the
// allocator, and the directory/file engines rather than the underlying
// storage.
var (
	ErrNotFound      = errors.New("nanofs: no such file or directory")
	ErrInvalid       = errors.New("nanofs: invalid argument")
	ErrAlreadyExists = errors.New("nanofs: file exists")
	ErrNoSpace       = errors.New("nanofs: no space left on device")
	ErrUnsupported   = errors.New("nanofs: operation not supported")
	ErrCorrupt       = errors.New("nanofs: corrupt filesystem structure")
	ErrIO            = errors.New("nanofs: I/O error")
)
