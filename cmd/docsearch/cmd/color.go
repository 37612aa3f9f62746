package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// stdoutIsTerminal reports whether stdout is attached to an interactive
// terminal (isatty plus the Cygwin/MSYS console check on Windows).
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// bold wraps s in an ANSI bold escape when stdout is a terminal, and
// returns it unchanged otherwise — search output piped to a file or
// another process should never carry escape codes.
func bold(s string) string {
	if !stdoutIsTerminal() {
		return s
	}
	return fmt.Sprintf("\x1b[1m%s\x1b[0m", s)
}
