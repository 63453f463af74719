// Package ptyspawn resolves a terminal-type launch command to a concrete
// binary and spawns it under a PTY through the shim binary, per spec §4.1.
// It follows the teacher's egg-server spawn sequence (internal/egg/server.go):
// resolve binary -> build exec.Cmd -> pty.StartWithSize -> wrap with a
// graceful-cancel signal.
package ptyspawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/golutra/golutra/internal/apperr"
)

// TerminalType enumerates the terminal-backed member kinds spec §1 names.
type TerminalType string

const (
	TypeShell    TerminalType = "shell"
	TypeCodex    TerminalType = "codex"
	TypeGemini   TerminalType = "gemini"
	TypeClaude   TerminalType = "claude"
	TypeOpencode TerminalType = "opencode"
	TypeQwen     TerminalType = "qwen"
)

// Request describes what to launch, mirroring spec §4.1's input fields.
type Request struct {
	Rows           int
	Cols           int
	CWD            string
	TerminalType   TerminalType
	TerminalPath   string
	Command        string // extra args appended to the resolved binary, e.g. "--resume <id>"
	StrictShell    bool
	Env            map[string]string
}

// Result is what the launcher hands back to the session pipeline.
type Result struct {
	PTY           *os.File
	Cmd           *exec.Cmd
	ResolvedPath  string
	FallbackUsed  bool
}

// ErrorKind enumerates spec §4.1's launcher failure taxonomy.
type ErrorKind int

const (
	ErrBinaryNotFound ErrorKind = iota
	ErrPtyOpen
	ErrSpawn
	ErrShimMissing
)

// shimPath locates the embedded-launcher shim binary. Out of scope per
// spec §1 ("the embedded terminal shim binary" is an external collaborator);
// this just needs its location.
func shimPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(filepath.Dir(exePath), "golutra-shim")
	if runtime.GOOS == "windows" {
		candidate += ".exe"
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("shim not found at %s: %w", candidate, err)
	}
	return candidate, nil
}

// Launch resolves the target binary and spawns it under a PTY via the shim.
// On failure, when req.StrictShell is false, it falls back to a plain shell
// and reports FallbackUsed, per spec §4.1.
func Launch(ctx context.Context, req Request) (*Result, error) {
	log := slog.With("component", "ptyspawn", "terminal_type", req.TerminalType)

	binPath, err := resolveBinary(req)
	if err != nil {
		if req.StrictShell {
			return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "binary not found", err)
		}
		log.Warn("binary not found, falling back to shell", "err", err)
		return launchFallbackShell(ctx, req)
	}

	shim, err := shimPath()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "shim missing", err)
	}

	args := buildCommandSpec(binPath, req)
	fullArgs := append([]string{binPath}, args...)

	cmd := exec.CommandContext(ctx, shim, fullArgs...)
	cmd.Dir = req.CWD
	cmd.Env = buildEnv(req)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	size := &pty.Winsize{Rows: uint16(req.Rows), Cols: uint16(req.Cols)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		if req.StrictShell {
			return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "pty start failed", err)
		}
		log.Warn("pty start failed, falling back to shell", "err", err)
		return launchFallbackShell(ctx, req)
	}

	return &Result{PTY: ptmx, Cmd: cmd, ResolvedPath: binPath}, nil
}

func launchFallbackShell(ctx context.Context, req Request) (*Result, error) {
	fallback := req
	fallback.TerminalType = TypeShell
	fallback.TerminalPath = ""
	fallback.Command = ""
	fallback.StrictShell = true // avoid infinite fallback recursion

	shellPath, err := resolveShell()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "no shell available", err)
	}
	shim, err := shimPath()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "shim missing", err)
	}
	cmd := exec.CommandContext(ctx, shim, shellPath)
	cmd.Dir = req.CWD
	cmd.Env = buildEnv(fallback)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	size := &pty.Winsize{Rows: uint16(req.Rows), Cols: uint16(req.Cols)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "ptyspawn.launch", "fallback pty start failed", err)
	}
	return &Result{PTY: ptmx, Cmd: cmd, ResolvedPath: shellPath, FallbackUsed: true}, nil
}

func buildEnv(req Request) []string {
	env := os.Environ()
	hasTerm := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "TERM=") {
			hasTerm = true
			break
		}
	}
	if !hasTerm {
		env = append(env, "TERM=xterm-256color")
	}
	for k, v := range req.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func resolveShell() (string, error) {
	if runtime.GOOS == "windows" {
		if c := os.Getenv("COMSPEC"); c != "" {
			return c, nil
		}
		return "cmd.exe", nil
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s, nil
	}
	return "sh", nil
}

var errBinaryNotFound = errors.New("binary not found")
