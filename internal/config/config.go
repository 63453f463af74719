package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the settings a workspace or user can override — terminal
// launch defaults and the agent CLI paths the session registry resolves
// a member's TerminalType against.
type Config struct {
	// Terminal defaults
	DefaultShell string `json:"default_shell,omitempty"`
	DefaultRows  int    `json:"default_rows,omitempty"`
	DefaultCols  int    `json:"default_cols,omitempty"`

	// Agent CLI launch paths, keyed by terminal type ("codex", "gemini",
	// "claude", "opencode", "qwen"). Empty means "resolve from PATH".
	AgentPaths map[string]string `json:"agent_paths,omitempty"`

	// GCSchedule is a 5-field cron expression for the workspace registry's
	// stale-entry sweep (internal/cron, internal/workspace.GC).
	GCSchedule string `json:"gc_schedule,omitempty"`
}

// Manager loads and merges user-level and project-level Config, project
// settings overriding user settings field by field.
type Manager struct {
	userConfig    *Config
	projectConfig *Config
	merged        *Config
}

func NewManager() *Manager {
	return &Manager{
		userConfig:    &Config{},
		projectConfig: &Config{},
		merged:        &Config{},
	}
}

func (m *Manager) Load(userConfigDir, projectDir string) error {
	userConfigPath := filepath.Join(userConfigDir, "settings.json")
	if err := m.loadConfig(userConfigPath, m.userConfig); err != nil {
		return err
	}

	projectConfigPath := filepath.Join(projectDir, ".golutra", "settings.json")
	if err := m.loadConfig(projectConfigPath, m.projectConfig); err != nil {
		return err
	}

	m.mergeConfigs()
	return nil
}

func (m *Manager) loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, cfg)
}

func (m *Manager) mergeConfigs() {
	agentPaths := make(map[string]string)
	for k, v := range m.userConfig.AgentPaths {
		agentPaths[k] = v
	}
	for k, v := range m.projectConfig.AgentPaths {
		agentPaths[k] = v
	}

	m.merged = &Config{
		DefaultShell: m.getStringValue(m.userConfig.DefaultShell, m.projectConfig.DefaultShell, "/bin/bash"),
		DefaultRows:  m.getIntValue(m.userConfig.DefaultRows, m.projectConfig.DefaultRows, 24),
		DefaultCols:  m.getIntValue(m.userConfig.DefaultCols, m.projectConfig.DefaultCols, 80),
		AgentPaths:   agentPaths,
		GCSchedule:   m.getStringValue(m.userConfig.GCSchedule, m.projectConfig.GCSchedule, "0 */6 * * *"),
	}
}

func (m *Manager) getStringValue(user, project, defaultValue string) string {
	if project != "" {
		return project
	}
	if user != "" {
		return user
	}
	return defaultValue
}

func (m *Manager) getIntValue(user, project, defaultValue int) int {
	if project != 0 {
		return project
	}
	if user != 0 {
		return user
	}
	return defaultValue
}

func (m *Manager) Get() *Config {
	return m.merged
}

func (m *Manager) SaveUserConfig(userConfigDir string) error {
	configPath := filepath.Join(userConfigDir, "settings.json")
	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.userConfig, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

func (m *Manager) SaveProjectConfig(projectDir string) error {
	golutraDir := filepath.Join(projectDir, ".golutra")
	configPath := filepath.Join(golutraDir, "settings.json")
	if err := os.MkdirAll(golutraDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.projectConfig, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
