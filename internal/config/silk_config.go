package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the name of the config file inside the config directory
const ConfigFileName = "silk.toml"

// Config represents the silk.toml configuration file
type Config struct {
	// Cache root for cloned plugins; empty means the default
	CacheDir string `toml:"cache_dir,omitempty"`

	// Activation directory skills are linked into; empty means the default
	SkillsDir string `toml:"skills_dir,omitempty"`

	Discovery DiscoveryConfig `toml:"discovery"`
	Git       GitConfig       `toml:"git"`
	Log       LogConfig       `toml:"log"`
	UI        UIConfig        `toml:"ui"`
}

// DiscoveryConfig controls how plugins are scanned for skills
type DiscoveryConfig struct {
	// Doublestar globs, relative to the plugin root, that are never traversed
	Ignore []string `toml:"ignore"`
}

// GitConfig controls the git subprocess
type GitConfig struct {
	Binary     string `toml:"binary"`
	CloneDepth int    `toml:"clone_depth"`
	Timeout    string `toml:"timeout"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `toml:"level"`
}

// UIConfig controls the terminal interface
type UIConfig struct {
	// Watch the cache and skills directories and refresh on change
	Watch bool `toml:"watch"`

	// Render SKILL.md previews with glamour
	Preview bool `toml:"preview"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Ignore: []string{"**/node_modules", "**/.github"},
		},
		Git: GitConfig{
			Binary:     "git",
			CloneDepth: 1,
			Timeout:    "5m",
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Watch:   true,
			Preview: true,
		},
	}
}

// LoadConfig loads silk.toml from configDir, returning defaults if it is missing
func LoadConfig(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes silk.toml to configDir
func (c *Config) Save(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, ConfigFileName), data, 0644)
}

// ApplyTo overrides defaults in p with values from the file.
// Environment variables still win over the file.
func (c *Config) ApplyTo(p *Paths) {
	if c.CacheDir != "" && os.Getenv(EnvCacheDir) == "" {
		p.CacheDir = ExpandHome(c.CacheDir)
	}
	if c.SkillsDir != "" && os.Getenv(EnvSkillsDir) == "" {
		p.SkillsDir = ExpandHome(c.SkillsDir)
	}
}

// GitTimeout parses git.timeout; zero means no timeout
func (c *Config) GitTimeout() time.Duration {
	if c.Git.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Git.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LogLevel maps log.level onto a slog level, defaulting to info
func (c *Config) LogLevel() slog.Level {
	return ParseLevel(c.Log.Level)
}

// ParseLevel maps a level name onto a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
