package config

import (
	"os"
	"path/filepath"
)

// GetUserConfigDir returns the per-user settings directory, ~/.golutra.
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".golutra"), nil
}

// GetProjectDir walks up from the current directory looking for a
// .golutra or .git directory, falling back to the working directory.
func GetProjectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for {
		projectDir := filepath.Join(dir, ".golutra")
		if _, err := os.Stat(projectDir); err == nil {
			return dir, nil
		}
		gitDir := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitDir); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd, nil
		}
		dir = parent
	}
}

// EnsureConfigDirs creates the user and project config directories.
func EnsureConfigDirs(userConfigDir, projectDir string) error {
	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return err
	}
	projectConfigDir := filepath.Join(projectDir, ".golutra")
	return os.MkdirAll(projectConfigDir, 0755)
}
