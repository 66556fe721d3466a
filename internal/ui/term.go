package ui

import "golang.org/x/term"

// IsTTY reports whether fd is attached to a terminal. The HUD presenter is
// only selected when stderr passes this check.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
