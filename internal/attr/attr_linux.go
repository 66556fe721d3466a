//go:build linux

package attr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// FS_IMMUTABLE_FL from linux/fs.h.
const immutableFlag = 0x00000010

func getImmutable(path string) (bool, error) {
	flags, err := readFlags(path)
	if err != nil {
		return false, err
	}
	return flags&immutableFlag != 0, nil
}

func setImmutable(path string, immutable bool) error {
	// O_NONBLOCK so opening a fifo that survived classification can't hang.
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_NOFOLLOW, 0)
	if err != nil {
		return classify(path, "open", err)
	}
	defer unix.Close(fd)

	flags, err := unix.IoctlGetUint32(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return classify(path, "getflags", err)
	}

	want := flags
	if immutable {
		want |= immutableFlag
	} else {
		want &^= immutableFlag
	}
	if want == flags {
		return nil
	}

	if err := unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, int(want)); err != nil {
		return classify(path, "setflags", err)
	}
	return nil
}

func readFlags(path string) (uint32, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_NOFOLLOW, 0)
	if err != nil {
		return 0, classify(path, "open", err)
	}
	defer unix.Close(fd)

	flags, err := unix.IoctlGetUint32(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return 0, classify(path, "getflags", err)
	}
	return flags, nil
}

// classify maps an errno onto the adapter's error kinds, keeping the path
// and failing operation in the message.
func classify(path, op string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}

	switch errno {
	case unix.ENOENT:
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	case unix.EPERM, unix.EACCES:
		return fmt.Errorf("%s %s: %w", op, path, ErrPermission)
	case unix.EROFS:
		return fmt.Errorf("%s %s: %w", op, path, ErrReadOnlyFS)
	case unix.ENOTTY, unix.ENOTSUP, unix.ENOSYS, unix.EINVAL:
		// EINVAL covers entry types the ioctl rejects outright.
		return fmt.Errorf("%s %s: %w", op, path, ErrUnsupported)
	case unix.ELOOP:
		// O_NOFOLLOW hit a symlink that appeared after classification.
		return fmt.Errorf("%s %s: %w", op, path, ErrUnsupported)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
