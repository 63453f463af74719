package config

import (
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWhenNoFilesExist(t *testing.T) {
	userDir := t.TempDir()
	projectDir := t.TempDir()

	m := NewManager()
	if err := m.Load(userDir, projectDir); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := m.Get()
	if got.DefaultShell != "/bin/bash" || got.DefaultRows != 24 || got.DefaultCols != 80 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestProjectConfigOverridesUserConfig(t *testing.T) {
	userDir := t.TempDir()
	projectDir := t.TempDir()

	um := NewManager()
	um.userConfig.DefaultShell = "/bin/zsh"
	um.userConfig.AgentPaths = map[string]string{"codex": "/usr/local/bin/codex"}
	if err := um.SaveUserConfig(userDir); err != nil {
		t.Fatalf("save user: %v", err)
	}

	pm := NewManager()
	pm.projectConfig.DefaultShell = "/bin/fish"
	pm.projectConfig.AgentPaths = map[string]string{"claude": "/opt/claude"}
	if err := pm.SaveProjectConfig(projectDir); err != nil {
		t.Fatalf("save project: %v", err)
	}

	m := NewManager()
	if err := m.Load(userDir, projectDir); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := m.Get()
	if got.DefaultShell != "/bin/fish" {
		t.Fatalf("DefaultShell = %q, want project override", got.DefaultShell)
	}
	if got.AgentPaths["codex"] != "/usr/local/bin/codex" {
		t.Fatalf("expected user agent path to survive merge, got %+v", got.AgentPaths)
	}
	if got.AgentPaths["claude"] != "/opt/claude" {
		t.Fatalf("expected project agent path present, got %+v", got.AgentPaths)
	}
}

func TestEnsureConfigDirsCreatesProjectSubdir(t *testing.T) {
	userDir := filepath.Join(t.TempDir(), "user")
	projectDir := t.TempDir()
	if err := EnsureConfigDirs(userDir, projectDir); err != nil {
		t.Fatalf("ensure: %v", err)
	}
}
