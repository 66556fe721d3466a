//go:build !linux

package mount

import (
	"errors"
	"syscall"
)

func devOf(st *syscall.Stat_t) uint64 {
	return uint64(st.Dev)
}

// FreeSpace is unavailable off Linux; the precheck treats this as "skip".
func FreeSpace(string) (int64, error) {
	return 0, errors.New("free space check not supported on this platform")
}
