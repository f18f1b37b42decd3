// Package cargo installs Rust crates with cargo install.
package cargo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// RustupScript installs the Rust toolchain non-interactively
const RustupScript = "curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y"

// Config configures the cargo backend
type Config struct {
	Runner runner.Runner
	Home   string // Defaults to the user's home directory
	Logger *zerolog.Logger
}

// Backend implements core.Backend for crates
type Backend struct {
	run    runner.Runner
	home   string
	logger zerolog.Logger

	mu sync.Mutex
}

// New creates the cargo backend
func New(cfg *Config) *Backend {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(true, 0)
	}
	if cfg.Home == "" {
		cfg.Home, _ = os.UserHomeDir()
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Backend{
		run:    cfg.Runner,
		home:   cfg.Home,
		logger: logger.With().Str("backend", "cargo").Logger(),
	}
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "cargo"
}

// Method returns core.MethodCargo
func (b *Backend) Method() core.Method {
	return core.MethodCargo
}

// Available reports whether cargo resolves
func (b *Backend) Available() bool {
	_, ok := b.cargo()
	return ok
}

// cargo finds the cargo binary on PATH, then under ~/.cargo/bin
func (b *Backend) cargo() (string, bool) {
	if runner.Exists(b.run, "cargo") {
		return "cargo", true
	}
	if b.home != "" {
		local := filepath.Join(b.home, ".cargo", "bin", "cargo")
		if runner.Exists(b.run, local) {
			return local, true
		}
	}
	return "", false
}

// ListInstalled returns the crates reported by `cargo install --list`
func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	bin, ok := b.cargo()
	if !ok {
		return map[string]struct{}{}, nil
	}

	res, err := b.run.Run(ctx, runner.Command{Name: bin, Args: []string{"install", "--list"}})
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("cargo install --list: %w", err)
	}
	return parseInstallList(res.Stdout), nil
}

// IsInstalled checks the crate list for name
func (b *Backend) IsInstalled(ctx context.Context, crate string) (bool, error) {
	installed, err := b.ListInstalled(ctx)
	if err != nil {
		return false, err
	}
	_, ok := installed[crate]
	return ok, nil
}

// Ensure runs the rustup installer when cargo is missing
func (b *Backend) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Available() {
		return nil
	}
	if !runner.Exists(b.run, "curl") {
		return fmt.Errorf("cargo missing and curl unavailable for rustup: %w", core.ErrBackendUnavailable)
	}

	b.logger.Info().Msg("cargo missing, running rustup installer")
	if _, err := b.run.Run(ctx, runner.Command{Name: "sh", Args: []string{"-c", RustupScript}}); err != nil {
		return fmt.Errorf("installing rust toolchain: %w", errors.Join(core.ErrBackendUnavailable, err))
	}
	if !b.Available() {
		return fmt.Errorf("cargo still missing after rustup: %w", core.ErrBackendUnavailable)
	}
	return nil
}

// Install builds and installs a crate
func (b *Backend) Install(ctx context.Context, crate string) error {
	return b.exec(ctx, "install", crate)
}

// Remove uninstalls a crate
func (b *Backend) Remove(ctx context.Context, crate string) error {
	return b.exec(ctx, "uninstall", crate)
}

func (b *Backend) exec(ctx context.Context, verb, crate string) error {
	bin, ok := b.cargo()
	if !ok {
		return fmt.Errorf("cargo: %w", core.ErrBackendUnavailable)
	}
	if _, err := b.run.Run(ctx, runner.Command{Name: bin, Args: []string{verb, crate}}); err != nil {
		return fmt.Errorf("cargo %s %s: %w", verb, crate, err)
	}
	return nil
}

// parseInstallList reads the unindented "name vX.Y.Z:" headers
func parseInstallList(out string) map[string]struct{} {
	installed := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' || !strings.HasSuffix(line, ":") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			installed[fields[0]] = struct{}{}
		}
	}
	return installed
}

var _ core.Backend = (*Backend)(nil)
