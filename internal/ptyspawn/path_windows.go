//go:build windows

package ptyspawn

import (
	"os/exec"
	"syscall"
)

func lookPathImpl(name string) (string, error) {
	return exec.LookPath(name)
}

// getShortPathName wraps GetShortPathNameW, used only to downgrade paths
// beyond the legacy 260-character limit for consoles that still enforce it.
func getShortPathName(path string) (string, bool) {
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return "", false
	}
	buf := make([]uint16, 4096)
	n, err := syscall.GetShortPathName(p, &buf[0], uint32(len(buf)))
	if err != nil || n == 0 {
		return "", false
	}
	return syscall.UTF16ToString(buf[:n]), true
}
