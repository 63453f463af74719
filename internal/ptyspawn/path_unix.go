//go:build !windows

package ptyspawn

import "os/exec"

func lookPathImpl(name string) (string, error) {
	return exec.LookPath(name)
}

// getShortPathName is a no-op outside Windows — the legacy 260-char path
// limit this compatibility shim works around does not exist elsewhere.
func getShortPathName(path string) (string, bool) {
	return "", false
}
