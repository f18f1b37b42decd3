// pkg/apt/backend.go
package apt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// New creates the apt backend
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(true, 0)
	}
	if cfg.IndexMaxAge <= 0 {
		cfg.IndexMaxAge = DefaultIndexMaxAge
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Backend{
		run:         cfg.Runner,
		config:      cfg,
		logger:      logger.With().Str("backend", "apt").Logger(),
		indexMaxAge: cfg.IndexMaxAge,
		now:         time.Now,
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "apt"
}

// Method returns core.MethodApt
func (b *Backend) Method() core.Method {
	return core.MethodApt
}

// Available reports whether dpkg and apt-get are present
func (b *Backend) Available() bool {
	return runner.Exists(b.run, "dpkg-query") && runner.Exists(b.run, "apt-get")
}

// ListInstalled returns every fully installed package
func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	res, err := b.run.Run(ctx, runner.Command{
		Name: "dpkg-query",
		Args: []string{"-W", "-f=" + StatusFormat},
	})
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("listing dpkg status: %w", err)
	}

	installed := parseStatusList(res.Stdout)
	b.logger.Debug().Int("count", len(installed)).Msg("listed installed packages")
	return installed, nil
}

// IsInstalled checks `dpkg -l <pkg>` for an "ii" row
func (b *Backend) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	res, err := b.run.Run(ctx, runner.Command{Name: "dpkg", Args: []string{"-l", pkg}})
	if err != nil {
		// dpkg -l exits 1 for packages it has never seen
		if errors.Is(err, core.ErrBackendUnavailable) || errors.Is(err, core.ErrBackendCommandFailed) {
			return false, nil
		}
		return false, fmt.Errorf("probing %s: %w", pkg, err)
	}
	return dpkgListHasInstalled(res.Stdout, pkg), nil
}

// Ensure checks apt-get is usable. apt cannot be bootstrapped.
func (b *Backend) Ensure(ctx context.Context) error {
	if !b.Available() {
		return fmt.Errorf("apt-get: %w", core.ErrBackendUnavailable)
	}
	return nil
}

// Update refreshes the package index unless it was refreshed recently
func (b *Backend) Update(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.update(ctx, false)
}

func (b *Backend) update(ctx context.Context, force bool) error {
	if !force && !b.lastUpdate.IsZero() && b.now().Sub(b.lastUpdate) < b.indexMaxAge {
		b.logger.Debug().Dur("age", b.now().Sub(b.lastUpdate)).Msg("using fresh package index")
		return nil
	}

	b.logger.Info().Msg("refreshing package index")
	if _, err := b.run.Run(ctx, runner.Command{
		Name: "apt-get",
		Args: []string{"update"},
		Env:  noninteractiveEnv,
		Root: true,
	}); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	b.lastUpdate = b.now()
	return nil
}

// Install refreshes the index then installs pkg
func (b *Backend) Install(ctx context.Context, pkg string) error {
	return b.installTargets(ctx, pkg)
}

// InstallFile installs a local .deb, resolving its dependencies through apt
func (b *Backend) InstallFile(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") {
		path = "./" + path
	}
	return b.installTargets(ctx, path)
}

func (b *Backend) installTargets(ctx context.Context, targets ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.update(ctx, false); err != nil {
		return err
	}

	args := append([]string{"install", "-y"}, conffileOpts...)
	args = append(args, targets...)
	res, err := b.run.Run(ctx, runner.Command{
		Name: "apt-get",
		Args: args,
		Env:  noninteractiveEnv,
		Root: true,
	})
	if err != nil {
		return fmt.Errorf("installing %s: %w", strings.Join(targets, " "), err)
	}

	b.logger.Debug().Str("output", res.Combined()).Msg("apt-get install finished")
	return nil
}

// Remove removes pkg, keeping its configuration files
func (b *Backend) Remove(ctx context.Context, pkg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.run.Run(ctx, runner.Command{
		Name: "apt-get",
		Args: []string{"remove", "-y", pkg},
		Env:  noninteractiveEnv,
		Root: true,
	}); err != nil {
		return fmt.Errorf("removing %s: %w", pkg, err)
	}
	return nil
}

// Info returns the candidate metadata of pkg from apt-cache show
func (b *Backend) Info(ctx context.Context, pkg string) (*PackageInfo, error) {
	res, err := b.run.Run(ctx, runner.Command{
		Name: "apt-cache",
		Args: []string{"show", "--no-all-versions", pkg},
	})
	if err != nil {
		if errors.Is(err, core.ErrBackendCommandFailed) {
			return nil, fmt.Errorf("apt-cache: %s: %w", pkg, core.ErrNotFound)
		}
		return nil, fmt.Errorf("apt-cache show %s: %w", pkg, err)
	}

	infos, err := ParsePackages(strings.NewReader(res.Stdout))
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("apt-cache: %s: %w", pkg, core.ErrNotFound)
	}
	return infos[0], nil
}

var _ core.Backend = (*Backend)(nil)
