package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/catalog"
)

const overlay = `
[[category]]
id = "science"
name = "Science"

[[package]]
name = "octave"
method = "flatpak"
id = "org.octave.Octave"
description = "Numerical computing"
category = "science"
`

// fakeClone writes files into the clone dir as if they had been checked out
func fakeClone(files map[string]string) func(context.Context, string) (string, error) {
	return func(_ context.Context, dir string) (string, error) {
		for name, body := range files {
			path := filepath.Join(dir, name)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return "", err
			}
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				return "", err
			}
		}
		return "0123abcd", nil
	}
}

func TestSyncInstallsOverlay(t *testing.T) {
	cacheDir := t.TempDir()
	s := New(Config{CacheDir: cacheDir})
	s.clone = fakeClone(map[string]string{
		"catalog/science.toml": overlay,
		"README.md":            "ignored",
	})

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123abcd", res.Commit)
	assert.Equal(t, []string{"science.toml"}, res.Files)
	assert.Equal(t, OverlayDir(cacheDir), res.Dir)

	cat, err := catalog.Load(res.Dir)
	require.NoError(t, err)
	rec, err := cat.Get("octave")
	require.NoError(t, err)
	assert.Equal(t, "science", rec.Category)
}

func TestSyncReplacesPreviousOverlay(t *testing.T) {
	cacheDir := t.TempDir()
	old := filepath.Join(OverlayDir(cacheDir), "old.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0755))
	require.NoError(t, os.WriteFile(old, []byte(""), 0644))

	s := New(Config{CacheDir: cacheDir})
	s.clone = fakeClone(map[string]string{"catalog/science.toml": overlay})

	_, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, old)
	assert.FileExists(t, filepath.Join(OverlayDir(cacheDir), "science.toml"))
}

func TestSyncRejectsInvalidOverlay(t *testing.T) {
	cacheDir := t.TempDir()
	prev := filepath.Join(OverlayDir(cacheDir), "science.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(prev), 0755))
	require.NoError(t, os.WriteFile(prev, []byte(overlay), 0644))

	s := New(Config{CacheDir: cacheDir})
	s.clone = fakeClone(map[string]string{
		"catalog/broken.toml": "[[package]]\nname = \"htop\"\nmethod = \"apt\"\ncategory = \"system\"\n",
	})

	_, err := s.Sync(context.Background())
	assert.ErrorContains(t, err, "rejecting overlay")
	assert.FileExists(t, prev)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSyncNoCatalogFiles(t *testing.T) {
	s := New(Config{CacheDir: t.TempDir()})
	s.clone = fakeClone(map[string]string{"README.md": "nothing here"})

	_, err := s.Sync(context.Background())
	assert.ErrorContains(t, err, "no catalog/*.toml files")
}

func TestSyncCloneFailure(t *testing.T) {
	s := New(Config{CacheDir: t.TempDir()})
	s.clone = func(context.Context, string) (string, error) { return "", errors.New("repository not found") }

	_, err := s.Sync(context.Background())
	assert.ErrorContains(t, err, "git clone failed")
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, "https://github.com/arc-language/ultrabunt", s.config.RepoURL)
	assert.Equal(t, "main", s.config.Branch)
}
