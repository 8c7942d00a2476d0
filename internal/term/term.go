// Package term reports whether a file descriptor refers to an interactive
// terminal. The CLI logger and diagnostic renderer use it to decide whether
// ANSI colors should be written.
package term

import (
	"io"
	"os"
)

// IsTerminal reports whether fd is attached to a terminal.
func IsTerminal(fd uintptr) bool {
	return isTerminal(fd)
}

// IsTerminalWriter reports whether w is an *os.File attached to a terminal.
// NO_COLOR disables detection entirely.
func IsTerminalWriter(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return IsTerminal(f.Fd())
}
