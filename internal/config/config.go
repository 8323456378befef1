// This package handles configuration and the .conclave directory structure.
// Every project that coordinates agents with conclave gets a .conclave/
// folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConclaveDir is the name of the directory we create in each project.
	ConclaveDir = ".conclave"

	// RootEnv overrides where the project root is resolved from. Agent
	// panes run with their working directory inside a worktree, so the
	// shim relies on this to find its way back to the project.
	RootEnv = "CONCLAVE_ROOT"

	defaultAgentCommand = "claude"
)

const defaultProjectConfigYAML = `# conclave project configuration
version: 1

# Command launched in each agent pane. The shim appends no arguments;
# instruction-document and mailbox paths are supplied via environment.
command: claude

# When true, sessions default to one git worktree per agent that
# declares a branch. Overridable per session with --worktrees.
worktrees: false

bridge:
  enabled: false
  host: 127.0.0.1
  port: 0
`

// BridgeConfig controls the optional per-agent HTTP tool facade.
type BridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .conclave/conclave.yaml.
type ProjectConfig struct {
	Version   int          `yaml:"version"`
	Command   string       `yaml:"command"`
	Worktrees bool         `yaml:"worktrees"`
	Bridge    BridgeConfig `yaml:"bridge,omitempty"`
}

// Config holds the runtime configuration for conclave.
type Config struct {
	// ProjectDir is the directory that owns the .conclave folder. All
	// sessions, rosters, and templates are resolved relative to it.
	ProjectDir string

	// ConclaveProjectDir is ProjectDir/.conclave
	ConclaveProjectDir string

	Project ProjectConfig
}

// ResolveRoot picks the project root: an explicit path wins, then the
// CONCLAVE_ROOT environment variable, then the working directory.
func ResolveRoot(explicit string) (string, error) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return filepath.Abs(trimmed)
	}
	if env := strings.TrimSpace(os.Getenv(RootEnv)); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: determine working directory: %w", err)
	}
	return cwd, nil
}

// InitConclaveDir creates the .conclave directory structure in the given
// project directory.
//
// Structure created:
// .conclave/
// ├── configs/    <- named agent rosters (one YAML file per configuration)
// ├── sessions/   <- one directory per orchestration run
// ├── templates/  <- role-specific instruction-document templates
// └── logs/       <- project-level logs
func InitConclaveDir(projectDir string) error {
	conclaveDir := filepath.Join(projectDir, ConclaveDir)

	dirs := []string{
		filepath.Join(conclaveDir, "configs"),
		filepath.Join(conclaveDir, "sessions"),
		filepath.Join(conclaveDir, "templates"),
		filepath.Join(conclaveDir, "logs"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(conclaveDir, "conclave.yaml"))
}

// NewConfig creates a Config populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:         projectDir,
		ConclaveProjectDir: filepath.Join(projectDir, ConclaveDir),
		Project:            defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigsDir returns the directory holding named roster configurations.
func (c *Config) ConfigsDir() string {
	return filepath.Join(c.ConclaveProjectDir, "configs")
}

// SessionsDir returns the directory holding all session stores.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.ConclaveProjectDir, "sessions")
}

// SessionDir returns the store directory for one named session.
func (c *Config) SessionDir(name string) string {
	return filepath.Join(c.SessionsDir(), name)
}

// TemplatesDir returns the directory holding role instruction templates.
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.ConclaveProjectDir, "templates")
}

// LogsDir returns the project-level log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ConclaveProjectDir, "logs")
}

// RosterPath returns the on-disk location of a named configuration.
func (c *Config) RosterPath(name string) string {
	return filepath.Join(c.ConfigsDir(), name+".yaml")
}

// ProjectConfigPath returns the on-disk location for conclave.yaml.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ConclaveProjectDir, "conclave.yaml")
}

// AgentCommand returns the interactive command launched in agent panes.
func (c *Config) AgentCommand() string {
	return c.Project.Command
}

// SetAgentCommand updates the agent command and persists it back to
// conclave.yaml.
func (c *Config) SetAgentCommand(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("config: agent command is required")
	}
	c.Project.Command = command
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Command: defaultAgentCommand,
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Command) == "" {
		pc.Command = defaultAgentCommand
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Command = strings.TrimSpace(pc.Command)
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Command == "" {
		return fmt.Errorf("command is required")
	}
	if pc.Bridge.Port < 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 0 and 65535")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.ConclaveProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure conclave dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
