// Package mount resolves the filesystem boundary that contains a path.
// The engine refuses to walk across it: two entries belong to the same
// mount iff their device identifiers match.
package mount

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Boundary identifies the mount containing a run's root. Resolved once per
// run and read-only afterwards.
type Boundary struct {
	Dev  uint64
	Root string
}

// Resolve determines the boundary for path: the device id of path itself
// and the highest ancestor still on that device.
func Resolve(path string) (Boundary, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Boundary{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	st, err := lstat(abs)
	if err != nil {
		return Boundary{}, fmt.Errorf("resolve %s: %w", abs, err)
	}
	dev := devOf(st)

	// Walk up until the parent sits on a different device (or we hit /).
	root := abs
	for {
		parent := filepath.Dir(root)
		if parent == root {
			break
		}
		pst, err := lstat(parent)
		if err != nil || devOf(pst) != dev {
			break
		}
		root = parent
	}

	return Boundary{Dev: dev, Root: root}, nil
}

// Contains reports whether an entry with the given stat lives on this
// boundary's device.
func (b Boundary) Contains(st *syscall.Stat_t) bool {
	return devOf(st) == b.Dev
}

// ContainsPath is Contains for callers that only hold a path.
func (b Boundary) ContainsPath(path string) (bool, error) {
	st, err := lstat(path)
	if err != nil {
		return false, fmt.Errorf("same mount %s: %w", path, err)
	}
	return b.Contains(st), nil
}

func (b Boundary) String() string {
	return fmt.Sprintf("%s (dev %d)", b.Root, b.Dev)
}

func lstat(path string) (*syscall.Stat_t, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("unsupported stat type for %s", path)
	}
	return st, nil
}
