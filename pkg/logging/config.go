package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum level written (debug, info, warn, error)
	Level string

	// File is the append-only log path
	File string

	// FallbackDir receives the log when File cannot be opened
	FallbackDir string

	// TimeFormat for the file timestamps
	TimeFormat string

	// Console optionally mirrors log lines to a terminal
	Console io.Writer

	// NoColor disables color on the console mirror
	NoColor bool

	// BufferSize is the diode ring size in messages
	BufferSize int

	// PollInterval is how often the drain goroutine checks for messages
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File == "" {
		c.File = "/var/log/ultrabunt.log"
	}
	if c.FallbackDir == "" {
		c.FallbackDir = defaultFallbackDir()
	}
	if c.TimeFormat == "" {
		c.TimeFormat = "2006-01-02 15:04:05"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if os.Getenv("NO_COLOR") != "" {
		c.NoColor = true
	}
}

func defaultFallbackDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ultrabunt")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "ultrabunt")
	}
	return filepath.Join(os.TempDir(), "ultrabunt")
}
