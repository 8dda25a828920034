package config

import (
	"os"
	"path/filepath"
)

// Environment overrides for the resolved paths.
const (
	EnvConfigDir = "SILK_CONFIG_DIR"
	EnvCacheDir  = "SILK_CACHE_DIR"
	EnvSkillsDir = "SILK_SKILLS_DIR"
)

// Paths holds all resolved paths for silk operations
type Paths struct {
	ConfigDir string // ~/.config/silk (silk.toml, silk.log)
	CacheDir  string // ~/.cache/silk/repos (<host>/<owner>/<repo> clones)
	SkillsDir string // ~/.claude/skills (activation links)
}

// ResolvePaths resolves all paths based on environment and defaults
func ResolvePaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = filepath.Join(home, ".config", "silk")
	}

	cacheDir := os.Getenv(EnvCacheDir)
	if cacheDir == "" {
		cacheDir = filepath.Join(home, ".cache", "silk", "repos")
	}

	skillsDir := os.Getenv(EnvSkillsDir)
	if skillsDir == "" {
		skillsDir = filepath.Join(home, ".claude", "skills")
	}

	return &Paths{
		ConfigDir: configDir,
		CacheDir:  cacheDir,
		SkillsDir: skillsDir,
	}, nil
}

// ConfigFile returns the path to silk.toml
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, ConfigFileName)
}

// LogFile returns the path the TUI logs to
func (p *Paths) LogFile() string {
	return filepath.Join(p.ConfigDir, "silk.log")
}

// CacheDirExists checks if the cache root exists
func (p *Paths) CacheDirExists() bool {
	info, err := os.Stat(p.CacheDir)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// SkillsDirIsSymlink checks if the activation directory is itself a symlink
func (p *Paths) SkillsDirIsSymlink() bool {
	info, err := os.Lstat(p.SkillsDir)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
