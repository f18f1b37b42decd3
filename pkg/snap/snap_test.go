package snap

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
	"github.com/arc-language/ultrabunt/pkg/runner/runnertest"
)

const snapListOut = `Name               Version          Rev    Tracking         Publisher   Notes
bare               1.0              5      latest/stable    canonical✓  base
code               1.85.1           150    latest/stable    vscode✓     classic
core22             20240111         1122   latest/stable    canonical✓  base
firefox            121.0.1-1        3600   latest/stable/…  mozilla✓    -
`

const snapInfoClassic = `name:      helix
summary:   A post-modern modal text editor
publisher: Lauren Brock (lauren)
license:   MPL-2.0
channels:
  latest/stable:    23.10 2023-10-24 (72) 15MB classic
  latest/candidate: ↑
  latest/beta:      ↑
`

const snapInfoStrict = `name:      spotify
summary:   Music for everyone
channels:
  latest/stable:    1.2.26 2023-12-04 (73) 193MB -
`

type fakeStat struct {
	present bool
	calls   int
}

func (f *fakeStat) stat(string) (os.FileInfo, error) {
	f.calls++
	if f.present {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

func newBackend(t *testing.T, f *runnertest.Fake, apt core.Backend) (*Backend, *fakeStat) {
	t.Helper()
	b, err := New(&Config{Runner: f, Apt: apt, SocketWait: 50 * time.Millisecond, Classic: []string{"code"}})
	require.NoError(t, err)
	st := &fakeStat{present: true}
	b.stat = st.stat
	b.sleep = func(context.Context, time.Duration) error { return nil }
	return b, st
}

func TestListInstalled(t *testing.T) {
	f := runnertest.NewFake("snap")
	f.On("snap list", runnertest.Response{Stdout: snapListOut})
	b, _ := newBackend(t, f, nil)

	got, err := b.ListInstalled(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Contains(t, got, "code")
	assert.NotContains(t, got, "Name")
}

func TestListInstalledAbsentCLI(t *testing.T) {
	b, _ := newBackend(t, runnertest.NewFake(), nil)

	got, err := b.ListInstalled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	ok, err := b.IsInstalled(context.Background(), "code")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListInstalledNoSnapsYet(t *testing.T) {
	f := runnertest.NewFake("snap")
	f.On("snap list", runnertest.Response{ExitCode: 1, Stderr: "No snaps are installed yet."})
	b, _ := newBackend(t, f, nil)

	got, err := b.ListInstalled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsInstalled(t *testing.T) {
	f := runnertest.NewFake("snap")
	f.On("snap list missing", runnertest.Response{ExitCode: 1, Stderr: `error: no matching snaps installed`})
	b, _ := newBackend(t, f, nil)

	ok, err := b.IsInstalled(context.Background(), "code")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IsInstalled(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsClassic(t *testing.T) {
	f := runnertest.NewFake("snap")
	f.On("snap info helix", runnertest.Response{Stdout: snapInfoClassic})
	f.On("snap info spotify", runnertest.Response{Stdout: snapInfoStrict})
	b, _ := newBackend(t, f, nil)
	ctx := context.Background()

	assert.True(t, b.IsClassic(ctx, "code"))
	assert.Equal(t, 0, f.Count("snap info"))

	assert.True(t, b.IsClassic(ctx, "helix"))
	assert.True(t, b.IsClassic(ctx, "helix"))
	assert.Equal(t, 1, f.Count("snap info helix"))

	assert.False(t, b.IsClassic(ctx, "spotify"))
}

func TestPublishesClassicInstalled(t *testing.T) {
	out := "name: code\nconfinement: classic\ninstalled: 1.85.1 (150) 330MB classic\n"
	assert.True(t, publishesClassic(out))
	assert.False(t, publishesClassic("name: x\nconfinement: strict\n"))
}

func TestInstallFlags(t *testing.T) {
	f := runnertest.NewFake("snap")
	f.On("snap info spotify", runnertest.Response{Stdout: snapInfoStrict})
	b, _ := newBackend(t, f, nil)

	require.NoError(t, b.Install(context.Background(), "code"))
	require.NoError(t, b.Install(context.Background(), "spotify"))

	var installs []runner.Command
	for _, c := range f.Calls() {
		if len(c.Args) > 0 && c.Args[0] == "install" {
			installs = append(installs, c)
		}
	}
	require.Len(t, installs, 2)
	assert.Equal(t, "snap install --classic code", installs[0].String())
	assert.Equal(t, "snap install spotify", installs[1].String())
	assert.True(t, installs[0].Root)
}

func TestRemove(t *testing.T) {
	f := runnertest.NewFake("snap")
	b, _ := newBackend(t, f, nil)

	require.NoError(t, b.Remove(context.Background(), "code"))
	assert.Equal(t, 1, f.Count("snap remove code"))
}

func TestEnsureOncePerSession(t *testing.T) {
	f := runnertest.NewFake("snap", "systemctl")
	b, _ := newBackend(t, f, nil)

	require.NoError(t, b.Ensure(context.Background()))
	require.NoError(t, b.Ensure(context.Background()))

	assert.Equal(t, 1, f.Count("systemctl is-active"))
	assert.Equal(t, 0, f.Count("systemctl enable"))
	assert.Equal(t, 1, f.Count("snap wait system seed.loaded"))
}

func TestEnsureStartsDaemon(t *testing.T) {
	f := runnertest.NewFake("snap", "systemctl")
	f.On("systemctl is-active", runnertest.Response{ExitCode: 3})
	b, _ := newBackend(t, f, nil)

	require.NoError(t, b.Ensure(context.Background()))
	assert.Equal(t, 1, f.Count("systemctl enable --now snapd.socket"))
}

func TestEnsureSocketMissing(t *testing.T) {
	f := runnertest.NewFake("snap", "systemctl")
	b, st := newBackend(t, f, nil)
	st.present = false

	err := b.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindBackendUnavailable, core.Kind(err))
	assert.Greater(t, st.calls, 1)
	assert.Equal(t, 0, f.Count("snap wait"))
}

type recordingApt struct {
	core.Backend
	installed []string
	onInstall func()
	err       error
}

func (r *recordingApt) Install(_ context.Context, pkg string) error {
	r.installed = append(r.installed, pkg)
	if r.onInstall != nil {
		r.onInstall()
	}
	return r.err
}

func TestEnsureBootstrapsSnapd(t *testing.T) {
	f := runnertest.NewFake("systemctl")
	apt := &recordingApt{onInstall: func() { f.AddBinary("snap") }}
	b, _ := newBackend(t, f, apt)

	require.NoError(t, b.Ensure(context.Background()))
	assert.Equal(t, []string{"snapd"}, apt.installed)
}

func TestEnsureBootstrapFails(t *testing.T) {
	f := runnertest.NewFake("systemctl")
	apt := &recordingApt{err: &core.CommandError{Command: "apt-get install -y snapd", ExitCode: 100}}
	b, _ := newBackend(t, f, apt)

	err := b.Ensure(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrBackendUnavailable))
	assert.Equal(t, core.KindBackendUnavailable, core.Kind(err))
}

func TestEnsureWithoutCLIOrApt(t *testing.T) {
	b, _ := newBackend(t, runnertest.NewFake(), nil)

	err := b.Ensure(context.Background())
	assert.True(t, errors.Is(err, core.ErrBackendUnavailable))
}
