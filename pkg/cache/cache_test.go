package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/core/coretest"
)

var (
	htop      = core.PackageRecord{Name: "htop", BackendID: "htop", Method: core.MethodApt, Category: "system"}
	vim       = core.PackageRecord{Name: "vim", BackendID: "vim", Method: core.MethodApt, Category: "editors"}
	codeSnap  = core.PackageRecord{Name: "vscode-snap", BackendID: "code", Method: core.MethodSnap, Category: "editors"}
	gimp      = core.PackageRecord{Name: "gimp", BackendID: "org.gimp.GIMP", Method: core.MethodFlatpak, Category: "media"}
	tsc       = core.PackageRecord{Name: "typescript", BackendID: "typescript", Method: core.MethodNpm, Category: "dev"}
	vscode    = core.PackageRecord{Name: "vscode", BackendID: "code", Method: core.MethodCustom, Category: "editors"}
	unhandled = core.PackageRecord{Name: "eza", BackendID: "eza", Method: core.MethodCargo, Category: "terminal"}
)

type fixture struct {
	apt, snap, flatpak, npm *coretest.Backend
	vscode                  *coretest.Installer
	cache                   *Cache
}

func newFixture() *fixture {
	f := &fixture{
		apt:     coretest.NewBackend(core.MethodApt, "htop"),
		snap:    coretest.NewBackend(core.MethodSnap, "code"),
		flatpak: coretest.NewBackend(core.MethodFlatpak),
		npm:     coretest.NewBackend(core.MethodNpm, "typescript"),
		vscode:  coretest.NewInstaller(false),
	}
	f.cache = New(core.Backends{
		core.MethodApt:     f.apt,
		core.MethodSnap:    f.snap,
		core.MethodFlatpak: f.flatpak,
		core.MethodNpm:     f.npm,
	}, coretest.Registry{"vscode": f.vscode}, nil)
	return f
}

func TestRebuildThenHitWithoutProbe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.cache.Rebuild(ctx))
	assert.True(t, f.cache.IsInstalled(ctx, htop))

	assert.Equal(t, 0, f.apt.Calls("IsInstalled"))
	assert.Equal(t, int64(1), f.cache.Stats().Hits)
	assert.Equal(t, int64(0), f.cache.Stats().Probes)
}

func TestRebuildListsOnlyBulkBackends(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.cache.Rebuild(context.Background()))
	assert.Equal(t, 1, f.apt.Calls("ListInstalled"))
	assert.Equal(t, 1, f.snap.Calls("ListInstalled"))
	assert.Equal(t, 1, f.flatpak.Calls("ListInstalled"))
	assert.Equal(t, 0, f.npm.Calls("ListInstalled"))

	snap := f.cache.Snapshot()
	assert.Equal(t, map[core.Key]struct{}{
		{Method: core.MethodApt, BackendID: "htop"}:  {},
		{Method: core.MethodSnap, BackendID: "code"}: {},
	}, snap)
}

func TestRebuildIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.cache.Rebuild(ctx))
	first := f.cache.Snapshot()
	require.NoError(t, f.cache.Rebuild(ctx))
	assert.Equal(t, first, f.cache.Snapshot())
	assert.Equal(t, int64(2), f.cache.Stats().Rebuilds)
}

func TestRebuildFailingBackendContributesEmpty(t *testing.T) {
	f := newFixture()
	f.snap.ListErr = errors.New("snapd exploded")

	require.NoError(t, f.cache.Rebuild(context.Background()))
	installed, known := f.cache.Lookup(codeSnap)
	assert.True(t, known)
	assert.False(t, installed)

	installed, _ = f.cache.Lookup(htop)
	assert.True(t, installed)
}

func TestRebuildAbsentBackend(t *testing.T) {
	f := newFixture()
	f.flatpak.Missing = true

	require.NoError(t, f.cache.Rebuild(context.Background()))
	assert.False(t, f.cache.IsInstalled(context.Background(), gimp))
}

func TestRebuildCancelledKeepsPreviousSet(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.cache.Rebuild(context.Background()))
	before := f.cache.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.cache.Rebuild(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, before, f.cache.Snapshot())
}

func TestMissFallsBackToProbeAndRecords(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.cache.Rebuild(ctx))

	f.apt.SetInstalled("vim", true)
	installed, _ := f.cache.Lookup(vim)
	assert.False(t, installed)

	assert.True(t, f.cache.IsInstalled(ctx, vim))
	assert.Equal(t, 1, f.apt.Calls("IsInstalled"))

	installed, _ = f.cache.Lookup(vim)
	assert.True(t, installed)
	assert.True(t, f.cache.IsInstalled(ctx, vim))
	assert.Equal(t, 1, f.apt.Calls("IsInstalled"))
}

func TestLiveMethodsAlwaysProbe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.cache.Rebuild(ctx))

	for i := 0; i < 3; i++ {
		assert.True(t, f.cache.IsInstalled(ctx, tsc))
		assert.False(t, f.cache.IsInstalled(ctx, vscode))
	}
	assert.Equal(t, 3, f.npm.Calls("IsInstalled"))
	assert.Equal(t, 3, f.vscode.Calls("IsInstalled"))

	_, known := f.cache.Lookup(tsc)
	assert.False(t, known)
	assert.Equal(t, 2, f.cache.Len())
}

func TestNoBackendForMethod(t *testing.T) {
	f := newFixture()
	assert.False(t, f.cache.IsInstalled(context.Background(), unhandled))

	missing := vscode
	missing.Name = "unregistered"
	assert.False(t, f.cache.IsInstalled(context.Background(), missing))
}

func TestUpdateOneSetsAndClears(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.cache.Rebuild(ctx))

	f.apt.SetInstalled("htop", false)
	assert.False(t, f.cache.UpdateOne(ctx, htop))
	installed, _ := f.cache.Lookup(htop)
	assert.False(t, installed)

	f.apt.SetInstalled("htop", true)
	assert.True(t, f.cache.UpdateOne(ctx, htop))
	installed, _ = f.cache.Lookup(htop)
	assert.True(t, installed)
}

func TestSharedBackendIDsStayIndependent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.cache.Rebuild(ctx))

	assert.True(t, f.cache.IsInstalled(ctx, codeSnap))
	assert.False(t, f.cache.IsInstalled(ctx, vscode))

	f.snap.SetInstalled("code", false)
	f.cache.UpdateOne(ctx, codeSnap)
	assert.False(t, f.cache.IsInstalled(ctx, codeSnap))
	assert.False(t, f.cache.IsInstalled(ctx, vscode))
}

// gatedBackend returns a listing taken before release is closed
type gatedBackend struct {
	*coretest.Backend
	listing map[string]struct{}
	started chan struct{}
	release chan struct{}
}

func (b *gatedBackend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	close(b.started)
	<-b.release
	return b.listing, nil
}

func TestRebuildKeepsWritesMadeDuringListing(t *testing.T) {
	apt := &gatedBackend{
		Backend: coretest.NewBackend(core.MethodApt, "vim", "curl"),
		listing: map[string]struct{}{"vim": {}, "curl": {}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := New(core.Backends{core.MethodApt: apt}, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Rebuild(ctx) }()
	<-apt.started

	apt.SetInstalled("htop", true)
	assert.True(t, c.UpdateOne(ctx, htop))
	apt.SetInstalled("vim", false)
	assert.False(t, c.UpdateOne(ctx, vim))

	close(apt.release)
	require.NoError(t, <-done)

	installed, _ := c.Lookup(htop)
	assert.True(t, installed, "install finished during the listing")
	installed, _ = c.Lookup(vim)
	assert.False(t, installed, "removal finished during the listing")
	installed, _ = c.Lookup(core.PackageRecord{Name: "curl", BackendID: "curl", Method: core.MethodApt})
	assert.True(t, installed)

	apt.listing = map[string]struct{}{"vim": {}}
	apt.started = make(chan struct{})
	apt.release = make(chan struct{})
	close(apt.release)
	require.NoError(t, c.Rebuild(ctx))

	installed, _ = c.Lookup(vim)
	assert.True(t, installed, "a later listing wins over older writes")
	installed, _ = c.Lookup(htop)
	assert.False(t, installed)
}

func TestRefresherSingleFlight(t *testing.T) {
	f := newFixture()
	r := NewRefresher(f.cache)
	f.apt.ListErr = nil

	h1 := r.StartRefresh(context.Background())
	h2 := r.StartRefresh(context.Background())
	if h1.Running() {
		assert.Same(t, h1, h2)
	}
	require.NoError(t, h1.Wait())
	require.NoError(t, h2.Wait())

	select {
	case <-h1.Done():
	case <-time.After(time.Second):
		t.Fatal("refresh did not finish")
	}
	assert.False(t, h1.Running())
	assert.True(t, f.cache.IsInstalled(context.Background(), htop))

	h3 := r.StartRefresh(context.Background())
	require.NoError(t, h3.Wait())
	assert.Same(t, h3, r.Current())
}

type blockingBackend struct {
	*coretest.Backend
	started chan struct{}
}

func (b *blockingBackend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefresherCancel(t *testing.T) {
	slow := &blockingBackend{Backend: coretest.NewBackend(core.MethodApt), started: make(chan struct{})}
	c := New(core.Backends{core.MethodApt: slow}, nil, nil)
	c.Set(htop, true)
	r := NewRefresher(c)

	h := r.StartRefresh(context.Background())
	<-slow.started
	assert.True(t, h.Running())
	h.Cancel()

	err := h.Wait()
	assert.True(t, errors.Is(err, context.Canceled))
	installed, _ := c.Lookup(htop)
	assert.True(t, installed)
}
