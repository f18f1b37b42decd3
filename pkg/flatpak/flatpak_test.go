package flatpak

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner/runnertest"
)

type recordingApt struct {
	core.Backend
	installed []string
	after     func()
	err       error
}

func (r *recordingApt) Install(_ context.Context, pkg string) error {
	r.installed = append(r.installed, pkg)
	if r.after != nil {
		r.after()
	}
	return r.err
}

func TestListInstalled(t *testing.T) {
	f := runnertest.NewFake("flatpak")
	f.On("flatpak list --app", runnertest.Response{Stdout: "com.visualstudio.code\norg.gimp.GIMP\n\n"})

	got, err := New(&Config{Runner: f}).ListInstalled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"com.visualstudio.code": {}, "org.gimp.GIMP": {}}, got)
}

func TestAbsentCLI(t *testing.T) {
	b := New(&Config{Runner: runnertest.NewFake()})

	got, err := b.ListInstalled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	ok, err := b.IsInstalled(context.Background(), "org.gimp.GIMP")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInstalled(t *testing.T) {
	f := runnertest.NewFake("flatpak")
	f.On("flatpak info org.missing", runnertest.Response{ExitCode: 1, Stderr: "error: org.missing/*unspecified*/*unspecified* not installed"})
	b := New(&Config{Runner: f})

	ok, err := b.IsInstalled(context.Background(), "org.gimp.GIMP")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IsInstalled(context.Background(), "org.missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureBootstrapsFlatpak(t *testing.T) {
	f := runnertest.NewFake()
	apt := &recordingApt{after: func() { f.AddBinary("flatpak") }}
	b := New(&Config{Runner: f, Apt: apt})

	require.NoError(t, b.Ensure(context.Background()))
	require.NoError(t, b.Ensure(context.Background()))

	assert.Equal(t, []string{"flatpak"}, apt.installed)
	assert.Equal(t, 1, f.Count("flatpak remote-add --if-not-exists flathub https://dl.flathub.org/repo/flathub.flatpakrepo"))
}

func TestEnsureBootstrapFailure(t *testing.T) {
	apt := &recordingApt{err: &core.CommandError{Command: "apt-get install -y flatpak", ExitCode: 100}}
	b := New(&Config{Runner: runnertest.NewFake(), Apt: apt})

	err := b.Ensure(context.Background())
	assert.Equal(t, core.KindBackendUnavailable, core.Kind(err))
}

func TestEnsureWithoutApt(t *testing.T) {
	err := New(&Config{Runner: runnertest.NewFake()}).Ensure(context.Background())
	assert.True(t, errors.Is(err, core.ErrBackendUnavailable))
}

func TestInstallRemove(t *testing.T) {
	f := runnertest.NewFake("flatpak")
	b := New(&Config{Runner: f})

	require.NoError(t, b.Install(context.Background(), "org.gimp.GIMP"))
	require.NoError(t, b.Remove(context.Background(), "org.gimp.GIMP"))

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "flatpak install -y --noninteractive flathub org.gimp.GIMP", calls[0].String())
	assert.Equal(t, "flatpak uninstall -y --noninteractive org.gimp.GIMP", calls[1].String())
}

func TestInstallFailure(t *testing.T) {
	f := runnertest.NewFake("flatpak")
	f.On("flatpak install", runnertest.Response{ExitCode: 1, Stderr: "error: Nothing matches org.nope"})

	err := New(&Config{Runner: f}).Install(context.Background(), "org.nope")
	assert.Equal(t, core.KindBackendCommandFailed, core.Kind(err))
	assert.Contains(t, err.Error(), "Nothing matches")
}

func TestRemotes(t *testing.T) {
	f := runnertest.NewFake("flatpak")
	f.On("flatpak remotes", runnertest.Response{Stdout: "Name\nflathub\nfedora\n"})

	names, err := New(&Config{Runner: f}).Remotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"flathub", "fedora"}, names)
}
