package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultrabunt.log")

	log, err := New(Config{File: path})
	require.NoError(t, err)
	assert.Equal(t, path, log.Path())

	log.Info().Str("package", "htop").Str("op", "install").Msg("ok")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "package=htop")
	assert.Contains(t, out, "op=install")
	assert.Contains(t, out, "INF")
	assert.NotContains(t, out, "\x1b[")
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultrabunt.log")
	require.NoError(t, os.WriteFile(path, []byte("previous line\n"), 0644))

	log, err := New(Config{File: path})
	require.NoError(t, err)
	log.Warn().Msg("second")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "previous line\n"))
	assert.Contains(t, string(data), "second")
}

func TestLoggerConcurrentWritersKeepWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultrabunt.log")

	log, err := New(Config{File: path, BufferSize: 10000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				log.Info().Str("worker", fmt.Sprint(w)).Int("seq", i).Msg("tick")
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 400)
	for _, line := range lines {
		assert.Contains(t, line, "tick")
	}
}

func TestLoggerFallback(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	fallback := filepath.Join(dir, "state")

	log, err := New(Config{File: filepath.Join(blocker, "ultrabunt.log"), FallbackDir: fallback})
	require.NoError(t, err)
	defer log.Close()

	assert.Equal(t, filepath.Join(fallback, "ultrabunt.log"), log.Path())
}

func TestLoggerLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultrabunt.log")
	var console bytes.Buffer

	log, err := New(Config{File: path, Level: "warn", Console: &console, NoColor: true})
	require.NoError(t, err)
	log.Info().Msg("hidden")
	log.Error().Msg("shown")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
	assert.Contains(t, console.String(), "shown")
}

func TestLoggerBadLevel(t *testing.T) {
	_, err := New(Config{File: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info().Msg("discarded")
	assert.NoError(t, log.Close())
	assert.Empty(t, log.Path())
}
