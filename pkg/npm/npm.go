// Package npm manages globally installed npm packages.
package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// RuntimePackages are installed through apt when npm is missing
var RuntimePackages = []string{"nodejs", "npm"}

// Config configures the npm backend
type Config struct {
	Runner runner.Runner
	Apt    core.Backend
	Logger *zerolog.Logger
}

// Backend implements core.Backend for global npm packages
type Backend struct {
	run    runner.Runner
	apt    core.Backend
	logger zerolog.Logger

	mu sync.Mutex
}

// listing is the subset of `npm ls --json` output we read
type listing struct {
	Dependencies map[string]struct {
		Version string `json:"version"`
	} `json:"dependencies"`
}

// New creates the npm backend
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(true, 0)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Backend{
		run:    cfg.Runner,
		apt:    cfg.Apt,
		logger: logger.With().Str("backend", "npm").Logger(),
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "npm"
}

// Method returns core.MethodNpm
func (b *Backend) Method() core.Method {
	return core.MethodNpm
}

// Available reports whether npm is present
func (b *Backend) Available() bool {
	return runner.Exists(b.run, "npm")
}

// ListInstalled returns the top-level global packages
func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	deps, err := b.list(ctx)
	if err != nil {
		return nil, err
	}
	installed := make(map[string]struct{}, len(deps.Dependencies))
	for name := range deps.Dependencies {
		installed[name] = struct{}{}
	}
	return installed, nil
}

// IsInstalled asks npm about one global package
func (b *Backend) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	deps, err := b.list(ctx, pkg)
	if err != nil {
		return false, err
	}
	_, ok := deps.Dependencies[pkg]
	return ok, nil
}

func (b *Backend) list(ctx context.Context, pkgs ...string) (*listing, error) {
	args := append([]string{"ls", "-g", "--depth=0", "--json"}, pkgs...)
	res, err := b.run.Run(ctx, runner.Command{Name: "npm", Args: args})
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			return &listing{}, nil
		}
		// npm ls exits 1 for an empty match but still prints JSON
		if !errors.Is(err, core.ErrBackendCommandFailed) || res == nil {
			return nil, fmt.Errorf("npm ls: %w", err)
		}
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return &listing{}, nil
	}
	var l listing
	if err := json.Unmarshal([]byte(out), &l); err != nil {
		return nil, fmt.Errorf("decoding npm ls output: %w", err)
	}
	return &l, nil
}

// Ensure installs Node.js and npm through apt when npm is missing
func (b *Backend) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Available() {
		return nil
	}
	if b.apt == nil {
		return fmt.Errorf("npm: %w", core.ErrBackendUnavailable)
	}

	for _, pkg := range RuntimePackages {
		b.logger.Info().Str("package", pkg).Msg("bootstrapping node runtime")
		if err := b.apt.Install(ctx, pkg); err != nil {
			return fmt.Errorf("installing %s: %w", pkg, errors.Join(core.ErrBackendUnavailable, err))
		}
	}
	if !b.Available() {
		return fmt.Errorf("npm still missing after bootstrap: %w", core.ErrBackendUnavailable)
	}
	return nil
}

// Install installs a package globally
func (b *Backend) Install(ctx context.Context, pkg string) error {
	if _, err := b.run.Run(ctx, runner.Command{Name: "npm", Args: []string{"install", "-g", pkg}, Root: true}); err != nil {
		return fmt.Errorf("installing npm package %s: %w", pkg, err)
	}
	return nil
}

// Remove uninstalls a global package
func (b *Backend) Remove(ctx context.Context, pkg string) error {
	if _, err := b.run.Run(ctx, runner.Command{Name: "npm", Args: []string{"uninstall", "-g", pkg}, Root: true}); err != nil {
		return fmt.Errorf("removing npm package %s: %w", pkg, err)
	}
	return nil
}

var _ core.Backend = (*Backend)(nil)
