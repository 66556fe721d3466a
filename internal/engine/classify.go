package engine

import (
	"io/fs"
	"os"
)

// Kind is the closed set of entry classifications. Only regular files are
// toggle targets; directories are recursed into; everything else is a
// recorded skip.
type Kind int

const (
	KindFile Kind = iota + 1
	KindDir
	KindSymlink
	KindSpecial
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// classifyMode maps a file mode onto a Kind. Odd-but-valid entry types
// (devices, sockets, fifos) classify as KindSpecial, never as an error.
func classifyMode(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDir
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindSpecial
	}
}

// classify lstats path and returns its kind and info. The only error case
// is unreadable metadata; symlinks are classified, never followed.
func classify(path string) (Kind, os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, nil, err
	}
	return classifyMode(info.Mode()), info, nil
}
