package ptyspawn

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// agentBinaryNames maps a terminal type to its candidate executable name(s).
var agentBinaryNames = map[TerminalType][]string{
	TypeCodex:    {"codex"},
	TypeGemini:   {"gemini"},
	TypeClaude:   {"claude"},
	TypeOpencode: {"opencode"},
	TypeQwen:     {"qwen"},
}

// winExtensions is the candidate extension search order on Windows, spec §4.1.
var winExtensions = []string{".exe", ".cmd", ".bat", ".ps1"}

// resolveBinary implements spec §4.1's priority chain: explicit path ->
// PATH -> platform-known install directories.
func resolveBinary(req Request) (string, error) {
	if req.TerminalType == TypeShell {
		return resolveShell()
	}

	if req.TerminalPath != "" {
		if p, ok := existsExecutable(req.TerminalPath); ok {
			return p, nil
		}
		return "", fmt.Errorf("%w: explicit path %s", errBinaryNotFound, req.TerminalPath)
	}

	names, ok := agentBinaryNames[req.TerminalType]
	if !ok {
		return "", fmt.Errorf("%w: unknown terminal type %s", errBinaryNotFound, req.TerminalType)
	}

	for _, name := range names {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}

	home, _ := os.UserHomeDir()
	for _, dir := range platformInstallDirs(home) {
		for _, name := range names {
			if p, ok := existsExecutable(filepath.Join(dir, name)); ok {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", errBinaryNotFound, req.TerminalType)
}

// platformInstallDirs lists home-relative and platform-known install
// directories searched after PATH, per spec §4.1.
func platformInstallDirs(home string) []string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		var dirs []string
		if localAppData != "" {
			dirs = append(dirs,
				filepath.Join(localAppData, "Programs"),
				filepath.Join(localAppData, "Microsoft", "WindowsApps"),
			)
		}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "scoop", "shims"))
		}
		dirs = append(dirs,
			`C:\Program Files`,
			`C:\Program Files (x86)`,
		)
		return dirs
	}
	if home == "" {
		return nil
	}
	return []string{
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, ".cargo", "bin"),
		filepath.Join(home, ".bun", "bin"),
		"/opt/homebrew/bin",
		"/usr/local/bin",
	}
}

// existsExecutable checks for a usable file at path, trying Windows
// extension candidates in order when no extension is present.
func existsExecutable(path string) (string, bool) {
	if runtime.GOOS == "windows" && filepath.Ext(path) == "" {
		for _, ext := range winExtensions {
			cand := path + ext
			if st, err := os.Stat(cand); err == nil && !st.IsDir() {
				return cand, true
			}
		}
		return "", false
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", false
	}
	return path, true
}

// lookPath wraps exec.LookPath's behavior without importing os/exec twice
// at call sites; it delegates to the per-platform lookPathImpl.
func lookPath(name string) (string, error) {
	return lookPathImpl(name)
}

// buildCommandSpec builds the shim's argv for the resolved binary,
// applying Windows wrapper quirks (cmd.exe /c, powershell -File) and the
// legacy-260-char short-path downgrade, isolated here per the design note
// that the rest of the launcher stays platform-neutral.
func buildCommandSpec(binPath string, req Request) []string {
	var args []string
	if runtime.GOOS == "windows" {
		args = windowsWrapperArgs(binPath)
		binPath = args[0]
		args = args[1:]
	}
	if req.Command != "" {
		args = append(args, strings.Fields(req.Command)...)
	}
	return args
}

// windowsWrapperArgs returns {wrapperBinary, wrapperArgs...} for .cmd/.bat
// (wrapped by cmd.exe /c) and .ps1 (wrapped by powershell.exe), downgrading
// long paths to their Win32 short form when available.
func windowsWrapperArgs(binPath string) []string {
	shortPath := toShortPathIfLong(binPath)
	switch strings.ToLower(filepath.Ext(binPath)) {
	case ".cmd", ".bat":
		return []string{"cmd.exe", "/c", shortPath}
	case ".ps1":
		return []string{"powershell.exe", "-NoLogo", "-ExecutionPolicy", "Bypass", "-File", shortPath}
	default:
		return []string{shortPath}
	}
}

// toShortPathIfLong downgrades paths exceeding the legacy 260-character
// limit to their Win32 short form via GetShortPathNameW when available;
// a compatibility shim for legacy consoles, isolated from the rest of the
// launcher per the design notes.
func toShortPathIfLong(path string) string {
	if len(path) <= 260 {
		return path
	}
	if short, ok := getShortPathName(path); ok {
		return short
	}
	return path
}
