// Package flatpak installs desktop apps from Flathub.
package flatpak

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

const (
	// DefaultRemote is the remote every app is installed from
	DefaultRemote = "flathub"

	// DefaultRemoteURL registers Flathub
	DefaultRemoteURL = "https://dl.flathub.org/repo/flathub.flatpakrepo"
)

// Config configures the flatpak backend
type Config struct {
	Runner    runner.Runner
	Apt       core.Backend // Installs flatpak itself when missing
	Remote    string
	RemoteURL string
	Logger    *zerolog.Logger
}

// Backend implements core.Backend for Flatpak apps
type Backend struct {
	run       runner.Runner
	apt       core.Backend
	remote    string
	remoteURL string
	logger    zerolog.Logger

	mu    sync.Mutex
	ready bool
}

// New creates the flatpak backend
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(true, 0)
	}
	if cfg.Remote == "" {
		cfg.Remote = DefaultRemote
	}
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = DefaultRemoteURL
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Backend{
		run:       cfg.Runner,
		apt:       cfg.Apt,
		remote:    cfg.Remote,
		remoteURL: cfg.RemoteURL,
		logger:    logger.With().Str("backend", "flatpak").Logger(),
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "flatpak"
}

// Method returns core.MethodFlatpak
func (b *Backend) Method() core.Method {
	return core.MethodFlatpak
}

// Available reports whether the flatpak CLI is present
func (b *Backend) Available() bool {
	return runner.Exists(b.run, "flatpak")
}

// ListInstalled returns the application ids of installed apps
func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	res, err := b.run.Run(ctx, runner.Command{
		Name: "flatpak",
		Args: []string{"list", "--app", "--columns=application"},
	})
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("flatpak list: %w", err)
	}

	installed := make(map[string]struct{})
	for _, line := range res.Lines() {
		// older flatpak releases print a header even with --columns
		if line == "Application ID" || line == "Application" {
			continue
		}
		installed[line] = struct{}{}
	}
	return installed, nil
}

// IsInstalled checks the exit status of `flatpak info <app-id>`
func (b *Backend) IsInstalled(ctx context.Context, appID string) (bool, error) {
	_, err := b.run.Run(ctx, runner.Command{Name: "flatpak", Args: []string{"info", appID}})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrBackendUnavailable), errors.Is(err, core.ErrBackendCommandFailed):
		return false, nil
	default:
		return false, fmt.Errorf("probing flatpak %s: %w", appID, err)
	}
}

// Ensure installs flatpak through apt when missing and registers the remote
func (b *Backend) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	if !b.Available() {
		if b.apt == nil {
			return fmt.Errorf("flatpak: %w", core.ErrBackendUnavailable)
		}
		b.logger.Info().Msg("flatpak missing, installing it")
		if err := b.apt.Install(ctx, "flatpak"); err != nil {
			return fmt.Errorf("installing flatpak: %w", errors.Join(core.ErrBackendUnavailable, err))
		}
		if !b.Available() {
			return fmt.Errorf("flatpak still missing after install: %w", core.ErrBackendUnavailable)
		}
	}

	if _, err := b.run.Run(ctx, runner.Command{
		Name: "flatpak",
		Args: []string{"remote-add", "--if-not-exists", b.remote, b.remoteURL},
		Root: true,
	}); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("registering %s remote: %w", b.remote, errors.Join(core.ErrBackendUnavailable, err))
	}

	b.ready = true
	return nil
}

// Install installs an app from the configured remote
func (b *Backend) Install(ctx context.Context, appID string) error {
	if _, err := b.run.Run(ctx, runner.Command{
		Name: "flatpak",
		Args: []string{"install", "-y", "--noninteractive", b.remote, appID},
		Root: true,
	}); err != nil {
		return fmt.Errorf("installing flatpak %s: %w", appID, err)
	}
	return nil
}

// Remove uninstalls an app
func (b *Backend) Remove(ctx context.Context, appID string) error {
	if _, err := b.run.Run(ctx, runner.Command{
		Name: "flatpak",
		Args: []string{"uninstall", "-y", "--noninteractive", appID},
		Root: true,
	}); err != nil {
		return fmt.Errorf("removing flatpak %s: %w", appID, err)
	}
	return nil
}

// Remotes lists the configured remote names
func (b *Backend) Remotes(ctx context.Context) ([]string, error) {
	res, err := b.run.Run(ctx, runner.Command{Name: "flatpak", Args: []string{"remotes", "--columns=name"}})
	if err != nil {
		return nil, fmt.Errorf("flatpak remotes: %w", err)
	}
	var names []string
	for _, line := range res.Lines() {
		if !strings.EqualFold(line, "name") {
			names = append(names, line)
		}
	}
	return names, nil
}

var _ core.Backend = (*Backend)(nil)
