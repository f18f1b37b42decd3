// pkg/core/config.go
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogFile is the append-only operation log
	DefaultLogFile = "/var/log/ultrabunt.log"

	// DefaultBackupDir holds credential dumps of the provisioning flows
	DefaultBackupDir = "/var/backups/ultrabunt"

	// DefaultCatalogRepo hosts catalog overlay files
	DefaultCatalogRepo = "https://github.com/arc-language/ultrabunt"

	// DefaultCatalogBranch is the branch cloned by catalog sync
	DefaultCatalogBranch = "main"
)

// Config holds ultrabunt configuration
type Config struct {
	LogFile            string        `yaml:"log_file"`
	LogLevel           string        `yaml:"log_level"`
	BackupDir          string        `yaml:"backup_dir"`
	CacheDir           string        `yaml:"cache_dir"`
	ExcludedCategories []string      `yaml:"excluded_categories"`
	CatalogRepo        string        `yaml:"catalog_repo"`
	CatalogBranch      string        `yaml:"catalog_branch"`
	UseSudo            bool          `yaml:"use_sudo"`
	CommandTimeout     time.Duration `yaml:"command_timeout"`
	Debug              bool          `yaml:"debug"`
	TTS                TTSConfig     `yaml:"tts"`
}

// TTSConfig configures spoken announcements
type TTSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Voice   string `yaml:"voice"`
	Rate    int    `yaml:"rate"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		LogFile:        DefaultLogFile,
		LogLevel:       "info",
		BackupDir:      DefaultBackupDir,
		CacheDir:       getDefaultCacheDir(),
		CatalogRepo:    DefaultCatalogRepo,
		CatalogBranch:  DefaultCatalogBranch,
		UseSudo:        true,
		CommandTimeout: 30 * time.Minute,
	}
}

// DefaultConfigPath returns $HOME/.config/ultrabunt/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ultrabunt", "config.yaml")
}

// LoadConfig loads configuration from file. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
		if path == "" {
			return fmt.Errorf("cannot determine config path")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Excluded returns the excluded categories as a set
func (c *Config) Excluded() map[string]bool {
	set := make(map[string]bool, len(c.ExcludedCategories))
	for _, id := range c.ExcludedCategories {
		set[id] = true
	}
	return set
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.BackupDir == "" {
		c.BackupDir = def.BackupDir
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.CatalogRepo == "" {
		c.CatalogRepo = def.CatalogRepo
	}
	if c.CatalogBranch == "" {
		c.CatalogBranch = def.CatalogBranch
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
}

func getDefaultCacheDir() string {
	if path := os.Getenv("ULTRABUNT_CACHE_DIR"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ultrabunt")
	}

	return filepath.Join(home, ".cache", "ultrabunt")
}
