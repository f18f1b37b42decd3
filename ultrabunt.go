// ultrabunt.go
package ultrabunt

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/apt"
	"github.com/arc-language/ultrabunt/pkg/cache"
	"github.com/arc-language/ultrabunt/pkg/cargo"
	"github.com/arc-language/ultrabunt/pkg/catalog"
	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/custom"
	"github.com/arc-language/ultrabunt/pkg/dispatch"
	"github.com/arc-language/ultrabunt/pkg/flatpak"
	"github.com/arc-language/ultrabunt/pkg/index"
	"github.com/arc-language/ultrabunt/pkg/logging"
	"github.com/arc-language/ultrabunt/pkg/npm"
	"github.com/arc-language/ultrabunt/pkg/platform"
	"github.com/arc-language/ultrabunt/pkg/runner"
	"github.com/arc-language/ultrabunt/pkg/snap"
	"github.com/arc-language/ultrabunt/pkg/tts"
)

// Re-export core types for convenience
type (
	Config        = core.Config
	Method        = core.Method
	PackageRecord = core.PackageRecord
	PackageStatus = core.PackageStatus
	Category      = core.Category
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Options configures a Manager
type Options struct {
	Config *Config

	// Runner overrides the host runner, mainly for tests
	Runner runner.Runner

	// Logger overrides the log file logger
	Logger *logging.Logger

	// Live receives the output of backend commands and custom scripts as they run
	Live io.Writer

	// Progress wraps .deb downloads
	Progress custom.ProgressFunc

	// Home overrides the user's home directory for cargo and detection rules
	Home string
}

// Manager wires the catalog, backends, installed-set cache and dispatcher
type Manager struct {
	config     *Config
	logger     *logging.Logger
	ownsLogger bool
	run        runner.Runner

	full      *catalog.Catalog
	catalog   *catalog.Catalog
	apt       *apt.Backend
	backends  core.Backends
	customs   *custom.Registry
	cache     *cache.Cache
	refresher *cache.Refresher
	dispatch  *dispatch.Dispatcher
	announcer *tts.Announcer
}

// NewManager builds a Manager. The cache starts empty; call Refresh or
// StartRefresh to fill it.
func NewManager(opts Options) (*Manager, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m := &Manager{config: cfg, logger: opts.Logger}
	if m.logger == nil {
		level := cfg.LogLevel
		if cfg.Debug {
			level = "debug"
		}
		l, err := logging.New(logging.Config{Level: level, File: cfg.LogFile})
		if err != nil {
			return nil, fmt.Errorf("opening log: %w", err)
		}
		m.logger = l
		m.ownsLogger = true
	}
	log := &m.logger.Logger

	m.run = opts.Runner
	if m.run == nil {
		exec := runner.NewExec(cfg.UseSudo, cfg.CommandTimeout)
		exec.Live = opts.Live
		m.run = exec
	}

	full, err := catalog.Load(index.OverlayDir(cfg.CacheDir))
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	m.full = full
	m.catalog = full.Without(cfg.Excluded())

	m.apt = apt.New(&apt.Config{Runner: m.run, Logger: log})
	snapBackend, err := snap.New(&snap.Config{Runner: m.run, Apt: m.apt, Logger: log})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("initializing snap backend: %w", err)
	}
	m.backends = core.Backends{
		core.MethodApt:     m.apt,
		core.MethodSnap:    snapBackend,
		core.MethodFlatpak: flatpak.New(&flatpak.Config{Runner: m.run, Apt: m.apt, Logger: log}),
		core.MethodNpm:     npm.New(&npm.Config{Runner: m.run, Apt: m.apt, Logger: log}),
		core.MethodCargo:   cargo.New(&cargo.Config{Runner: m.run, Home: opts.Home, Logger: log}),
	}

	m.customs, err = custom.FromCatalog(full, custom.Options{
		Runner:   m.run,
		Apt:      m.apt,
		CacheDir: cfg.CacheDir,
		Home:     opts.Home,
		Live:     opts.Live,
		Progress: opts.Progress,
		Logger:   log,
	})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("building custom installers: %w", err)
	}

	m.cache = cache.New(m.backends, m.customs, log)
	m.refresher = cache.NewRefresher(m.cache)
	m.dispatch = dispatch.New(full, m.cache, m.backends, m.customs, log)
	m.announcer = tts.New(m.run, cfg.TTS, log)

	return m, nil
}

// Catalog returns the catalog with excluded categories hidden
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Categories returns the visible categories
func (m *Manager) Categories() []Category {
	return m.catalog.Categories()
}

// List returns the records of a visible category with their installed state
func (m *Manager) List(ctx context.Context, category string) []PackageStatus {
	recs := m.catalog.ListByCategory(category)
	out := make([]PackageStatus, 0, len(recs))
	for _, rec := range recs {
		out = append(out, PackageStatus{Record: rec, Installed: m.cache.IsInstalled(ctx, rec)})
	}
	return out
}

// Cached returns the records of a category with the state the cache already
// holds, without probing. Unknown entries report not installed.
func (m *Manager) Cached(category string) []PackageStatus {
	recs := m.catalog.ListByCategory(category)
	out := make([]PackageStatus, 0, len(recs))
	for _, rec := range recs {
		installed, _ := m.cache.Lookup(rec)
		out = append(out, PackageStatus{Record: rec, Installed: installed})
	}
	return out
}

// Status returns the record and installed state of name
func (m *Manager) Status(ctx context.Context, name string) (PackageStatus, error) {
	return m.dispatch.Status(ctx, name)
}

// Install installs the named package
func (m *Manager) Install(ctx context.Context, name string) error {
	err := m.dispatch.Install(ctx, name)
	m.announce(ctx, name, "installed", err)
	return err
}

// Remove removes the named package
func (m *Manager) Remove(ctx context.Context, name string) error {
	err := m.dispatch.Remove(ctx, name)
	m.announce(ctx, name, "removed", err)
	return err
}

// InstalledDependents lists installed packages that depend on name
func (m *Manager) InstalledDependents(ctx context.Context, name string) []string {
	return m.dispatch.InstalledDependents(ctx, name)
}

// Refresh rebuilds the installed-set cache and waits for it
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresher.StartRefresh(ctx).Wait()
}

// StartRefresh rebuilds the installed-set cache in the background
func (m *Manager) StartRefresh(ctx context.Context) *cache.Refresh {
	return m.refresher.StartRefresh(ctx)
}

// CacheStats returns installed-set cache counters
func (m *Manager) CacheStats() cache.Stats {
	return m.cache.Stats()
}

// Info returns the apt metadata of an apt-backed package
func (m *Manager) Info(ctx context.Context, name string) (*apt.PackageInfo, error) {
	rec, err := m.full.Get(name)
	if err != nil {
		return nil, err
	}

	pkg := rec.BackendID
	switch {
	case rec.Method == core.MethodApt:
	case rec.Method == core.MethodCustom && rec.Detect.Kind == core.DetectApt:
		pkg = rec.Detect.Target
	default:
		return nil, fmt.Errorf("%s is installed with %s, no apt metadata", name, rec.Method)
	}
	return m.apt.Info(ctx, pkg)
}

// SyncCatalog fetches catalog overlay files into the cache directory. The
// new records are used from the next start.
func (m *Manager) SyncCatalog(ctx context.Context, progress io.Writer) (*index.Result, error) {
	s := index.New(index.Config{
		RepoURL:  m.config.CatalogRepo,
		Branch:   m.config.CatalogBranch,
		CacheDir: m.config.CacheDir,
		Progress: progress,
		Logger:   &m.logger.Logger,
	})
	return s.Sync(ctx)
}

// Platform detects the host distribution and usable methods
func (m *Manager) Platform() (*platform.Platform, error) {
	return platform.Detect(m.run)
}

// Logger returns the operation log
func (m *Manager) Logger() *zerolog.Logger {
	return &m.logger.Logger
}

// LogPath returns the file the operation log is written to
func (m *Manager) LogPath() string {
	return m.logger.Path()
}

// Close cancels any background refresh and flushes the log
func (m *Manager) Close() error {
	if m.refresher != nil {
		if r := m.refresher.Current(); r != nil && r.Running() {
			r.Cancel()
			r.Wait()
		}
	}
	if m.ownsLogger {
		return m.logger.Close()
	}
	return nil
}

func (m *Manager) announce(ctx context.Context, name, verb string, err error) {
	if err != nil {
		m.announcer.Say(ctx, name+" failed")
		return
	}
	m.announcer.Say(ctx, name+" "+verb)
}
