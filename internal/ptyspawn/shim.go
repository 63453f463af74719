package ptyspawn

import (
	"bytes"
	"strconv"
)

// Shim protocol markers, spec §6.1. The shim binary itself is an external
// collaborator (spec §1); this is its contract as seen by the core.
const (
	oscReadyPrefix = "\x1b]633;A\a"
	oscExitPrefix  = "\x1b]633;D;"
	oscExitSuffix  = "\a"
	launchErrorTag = "SHIM_LAUNCH_ERROR "
)

// FindReady reports whether chunk contains the shim's ready marker.
func FindReady(chunk []byte) bool {
	return bytes.Contains(chunk, []byte(oscReadyPrefix))
}

// FindExit reports whether chunk contains the shim's exit marker and, if
// so, the exit code it carries.
func FindExit(chunk []byte) (code int, ok bool) {
	idx := bytes.Index(chunk, []byte(oscExitPrefix))
	if idx < 0 {
		return 0, false
	}
	rest := chunk[idx+len(oscExitPrefix):]
	end := bytes.Index(rest, []byte(oscExitSuffix))
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(rest[:end]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// FindLaunchError reports whether chunk contains a SHIM_LAUNCH_ERROR line
// and, if so, the reason text.
func FindLaunchError(chunk []byte) (reason string, ok bool) {
	idx := bytes.Index(chunk, []byte(launchErrorTag))
	if idx < 0 {
		return "", false
	}
	rest := chunk[idx+len(launchErrorTag):]
	end := bytes.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	return string(bytes.TrimSpace(rest[:end])), true
}

// StripShimMarkers removes OSC 633 sequences from a chunk before it is
// forwarded to any consumer that renders output (the emulator, the
// semantic worker) — spec §6.1: "The VT emulator must not render OSC 633
// sequences; they are consumed by the processor."
func StripShimMarkers(chunk []byte) []byte {
	out := chunk
	for {
		idx := bytes.Index(out, []byte("\x1b]633;"))
		if idx < 0 {
			return out
		}
		end := bytes.IndexByte(out[idx:], '\a')
		if end >= 0 {
			end++ // include the BEL terminator
		} else if stIdx := bytes.Index(out[idx:], []byte("\x1b\\")); stIdx >= 0 {
			end = stIdx + 2 // include the ST terminator
		} else {
			return out
		}
		out = append(out[:idx:idx], out[idx+end:]...)
	}
}
