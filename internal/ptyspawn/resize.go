package ptyspawn

import (
	"os"

	"github.com/creack/pty"
)

// Resize applies a new viewport size to a running PTY.
func Resize(ptmx *os.File, rows, cols int) error {
	return pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}
