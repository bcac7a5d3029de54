package grokchat

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalFd returns the file descriptor behind v if v is an *os.File
// connected to a terminal.
func terminalFd(v any) (fd int, ok bool) {
	f, isFile := v.(*os.File)
	if !isFile || f == nil {
		return
	}
	fd = int(f.Fd())
	ok = term.IsTerminal(fd)
	return
}

// hasPrefixFold is a case-insensitive strings.HasPrefix.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
