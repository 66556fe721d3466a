//go:build linux

package mount

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func devOf(st *syscall.Stat_t) uint64 {
	return st.Dev
}

// FreeSpace returns the free bytes available to unprivileged callers on the
// filesystem containing path.
func FreeSpace(path string) (int64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(fs.Bavail) * fs.Bsize, nil
}
