package ultrabunt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/logging"
	"github.com/arc-language/ultrabunt/pkg/runner/runnertest"
)

func newTestManager(t *testing.T, excluded ...string) (*Manager, *runnertest.Fake) {
	t.Helper()

	f := runnertest.NewFake("dpkg-query", "dpkg", "apt-get", "apt-cache")
	f.On("dpkg-query", runnertest.Response{Stdout: "htop\tii \nvim\trc \n"})

	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.ExcludedCategories = excluded

	m, err := NewManager(Options{Config: cfg, Runner: f, Logger: logging.Nop(), Home: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, f
}

func TestManagerRefreshThenCachedStatus(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Refresh(ctx))

	st, err := m.Status(ctx, "htop")
	require.NoError(t, err)
	assert.True(t, st.Installed)
	assert.Equal(t, 0, f.Count("dpkg -l"))
	assert.Equal(t, int64(1), m.CacheStats().Rebuilds)
}

func TestManagerExcludedCategoriesHidden(t *testing.T) {
	m, _ := newTestManager(t, "gaming")

	for _, c := range m.Categories() {
		assert.NotEqual(t, "gaming", c.ID)
	}
	assert.Empty(t, m.Cached("gaming"))
	assert.NotEmpty(t, m.Cached("system"))
}

func TestManagerDependencyMissing(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	err := m.Install(ctx, "docker-compose")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyMissing))
	assert.Equal(t, core.KindDependencyMissing, Kind(err))
	assert.Equal(t, 0, f.Count("apt-get"))
}

func TestManagerInstallApt(t *testing.T) {
	m, f := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	f.On("dpkg -l vim", runnertest.Response{Stdout: "ii  vim  2:9.1.0016-1ubuntu7 amd64  Vi IMproved\n"})

	require.NoError(t, m.Install(ctx, "vim"))
	assert.Equal(t, 1, f.Count("apt-get update"))
	assert.Equal(t, 1, f.Count("apt-get install -y"))

	for _, c := range f.Calls() {
		if c.Name == "apt-get" {
			assert.True(t, c.Root)
		}
	}

	st, err := m.Status(ctx, "vim")
	require.NoError(t, err)
	assert.True(t, st.Installed)
}

func TestManagerNotFound(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Install(context.Background(), "not-a-package")
	assert.True(t, errors.Is(err, ErrNotFound))

	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "install", opErr.Op)
}

func TestManagerInfoRejectsNonApt(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Info(context.Background(), "gimp")
	assert.ErrorContains(t, err, "no apt metadata")
}
