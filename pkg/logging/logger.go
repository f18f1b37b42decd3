// Package logging writes the ultrabunt operation log using zerolog.
//
// Every component logs through one Logger. The file is owned by a single
// diode drain goroutine, so concurrent installs never interleave partial
// lines and callers never block on disk.
//
//	log, err := logging.New(logging.Config{File: "/var/log/ultrabunt.log"})
//	defer log.Close()
//	log.Info().Str("package", "htop").Str("op", "install").Msg("ok")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Logger is a zerolog.Logger bound to the operation log file
type Logger struct {
	zerolog.Logger

	path   string
	closer io.Closer
}

// New opens the log file and builds a logger. When the configured file is not
// writable the logger falls back to FallbackDir/ultrabunt.log.
func New(cfg Config) (*Logger, error) {
	cfg.applyDefaults()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	f, path, err := openLogFile(cfg.File, cfg.FallbackDir)
	if err != nil {
		return nil, err
	}

	drain := diode.NewWriter(f, cfg.BufferSize, cfg.PollInterval, func(missed int) {
		fmt.Fprintf(os.Stderr, "ultrabunt: dropped %d log messages\n", missed)
	})

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        drain,
		NoColor:    true,
		TimeFormat: cfg.TimeFormat,
	}
	if cfg.Console != nil {
		w = zerolog.MultiLevelWriter(w, zerolog.ConsoleWriter{
			Out:        cfg.Console,
			NoColor:    cfg.NoColor,
			TimeFormat: time.Kitchen,
		})
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		zl = zl.With().Caller().Logger()
	}

	return &Logger{Logger: zl, path: path, closer: drain}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Path returns the file the logger writes to
func (l *Logger) Path() string {
	return l.path
}

// Close flushes pending lines and closes the file
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

func openLogFile(path, fallbackDir string) (*os.File, string, error) {
	f, err := openAppend(path)
	if err == nil {
		return f, path, nil
	}
	if fallbackDir == "" {
		return nil, "", fmt.Errorf("opening log file: %w", err)
	}

	alt := filepath.Join(fallbackDir, filepath.Base(path))
	f, altErr := openAppend(alt)
	if altErr != nil {
		return nil, "", fmt.Errorf("opening log file: %w", errors.Join(err, altErr))
	}
	return f, alt, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
