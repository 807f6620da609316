package pretty

import (
	"os"

	"golang.org/x/term"
)

// Whether f is an interactive terminal that can render color.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
