// Package attr wraps the Linux immutable-attribute primitive. The rest of
// the program only sees Adapter, so the engine can be tested without
// privilege and without an ext4/xfs mount.
package attr

import "errors"

// Error kinds surfaced by Set/Get. Callers match with errors.Is.
var (
	// ErrUnsupported means the filesystem or entry type has no attribute
	// store (vfat, tmpfs on older kernels, sockets, ...).
	ErrUnsupported = errors.New("immutable attribute not supported")

	// ErrPermission means the caller lacks CAP_LINUX_IMMUTABLE.
	ErrPermission = errors.New("permission denied")

	// ErrReadOnlyFS means the mount is read-only.
	ErrReadOnlyFS = errors.New("read-only filesystem")

	// ErrNotFound means the entry vanished between discovery and toggle.
	ErrNotFound = errors.New("entry vanished")
)

// Adapter is the single-file attribute primitive. Both calls operate on the
// path itself, never on a symlink target, and are atomic per file: a Set
// either fully applies or fully fails.
type Adapter interface {
	// Get reports whether the immutable flag is currently set.
	Get(path string) (bool, error)

	// Set applies (immutable=true) or clears (immutable=false) the flag.
	Set(path string, immutable bool) error
}

// System is the real adapter backed by FS_IOC_GETFLAGS/FS_IOC_SETFLAGS.
type System struct{}

var _ Adapter = System{}

// Get implements Adapter.
func (System) Get(path string) (bool, error) {
	return getImmutable(path)
}

// Set implements Adapter.
func (System) Set(path string, immutable bool) error {
	return setImmutable(path, immutable)
}
