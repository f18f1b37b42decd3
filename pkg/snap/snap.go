// Package snap drives snapd through the snap CLI.
package snap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

const (
	// DefaultSocketPath is where snapd listens once it is up
	DefaultSocketPath = "/run/snapd.socket"

	// DefaultSocketWait bounds how long Ensure waits for the socket
	DefaultSocketWait = 15 * time.Second

	confinementCacheSize = 256
)

// ClassicSnaps are well-known snaps published with classic confinement
var ClassicSnaps = []string{
	"code",
	"code-insiders",
	"sublime-text",
	"intellij-idea-community",
	"intellij-idea-ultimate",
	"pycharm-community",
	"pycharm-professional",
	"goland",
	"webstorm",
	"clion",
	"android-studio",
	"go",
	"node",
	"kubectl",
	"helm",
	"flutter",
	"powershell",
	"certbot",
	"aws-cli",
	"google-cloud-cli",
	"dotnet-sdk",
	"zig",
}

// Config configures the snap backend
type Config struct {
	Runner     runner.Runner
	Apt        core.Backend // Installs snapd when the snap CLI is missing
	SocketPath string
	SocketWait time.Duration
	Classic    []string // Overrides ClassicSnaps
	Logger     *zerolog.Logger
}

// Backend implements core.Backend for snaps
type Backend struct {
	run        runner.Runner
	apt        core.Backend
	socketPath string
	socketWait time.Duration
	classic    map[string]bool
	logger     zerolog.Logger

	confinement *lru.Cache[string, bool]

	mu    sync.Mutex
	ready bool

	stat  func(string) (os.FileInfo, error)
	sleep func(context.Context, time.Duration) error
}

// New creates the snap backend
func New(cfg *Config) (*Backend, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(true, 0)
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.SocketWait <= 0 {
		cfg.SocketWait = DefaultSocketWait
	}
	names := cfg.Classic
	if names == nil {
		names = ClassicSnaps
	}

	memo, err := lru.New[string, bool](confinementCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating confinement cache: %w", err)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	b := &Backend{
		run:         cfg.Runner,
		apt:         cfg.Apt,
		socketPath:  cfg.SocketPath,
		socketWait:  cfg.SocketWait,
		classic:     make(map[string]bool, len(names)),
		logger:      logger.With().Str("backend", "snap").Logger(),
		confinement: memo,
		stat:        os.Stat,
		sleep:       sleepCtx,
	}
	for _, n := range names {
		b.classic[n] = true
	}
	return b, nil
}

// Name returns the backend name
func (b *Backend) Name() string {
	return "snap"
}

// Method returns core.MethodSnap
func (b *Backend) Method() core.Method {
	return core.MethodSnap
}

// Available reports whether the snap CLI is present
func (b *Backend) Available() bool {
	return runner.Exists(b.run, "snap")
}

// ListInstalled returns the names printed by `snap list`
func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	res, err := b.run.Run(ctx, runner.Command{Name: "snap", Args: []string{"list"}})
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			return map[string]struct{}{}, nil
		}
		// snapd answers "No snaps are installed yet" with a non-zero exit on fresh systems
		var cmdErr *core.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Output, "No snaps") {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("snap list: %w", err)
	}
	return parseList(res.Stdout), nil
}

// IsInstalled checks the exit status of `snap list <name>`
func (b *Backend) IsInstalled(ctx context.Context, name string) (bool, error) {
	_, err := b.run.Run(ctx, runner.Command{Name: "snap", Args: []string{"list", name}})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrBackendUnavailable), errors.Is(err, core.ErrBackendCommandFailed):
		return false, nil
	default:
		return false, fmt.Errorf("probing snap %s: %w", name, err)
	}
}

// Ensure brings snapd up once per session: CLI present, daemon active,
// socket present and seeding finished
func (b *Backend) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	if !b.Available() {
		if b.apt == nil {
			return fmt.Errorf("snap: %w", core.ErrBackendUnavailable)
		}
		b.logger.Info().Msg("snap CLI missing, installing snapd")
		if err := b.apt.Install(ctx, "snapd"); err != nil {
			return unavailable("installing snapd", err)
		}
		if !b.Available() {
			return fmt.Errorf("snap still missing after installing snapd: %w", core.ErrBackendUnavailable)
		}
	}

	if _, err := b.run.Run(ctx, runner.Command{Name: "systemctl", Args: []string{"is-active", "--quiet", "snapd.socket"}}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Info().Msg("starting snapd")
		if _, err := b.run.Run(ctx, runner.Command{
			Name: "systemctl",
			Args: []string{"enable", "--now", "snapd.socket", "snapd.service"},
			Root: true,
		}); err != nil {
			return unavailable("starting snapd", err)
		}
	}

	if err := b.waitSocket(ctx); err != nil {
		return err
	}

	if _, err := b.run.Run(ctx, runner.Command{
		Name: "snap",
		Args: []string{"wait", "system", "seed.loaded"},
		Root: true,
	}); err != nil {
		return unavailable("waiting for snap seeding", err)
	}

	b.ready = true
	b.logger.Debug().Msg("snapd ready")
	return nil
}

func (b *Backend) waitSocket(ctx context.Context) error {
	deadline := time.Now().Add(b.socketWait)
	for {
		if _, err := b.stat(b.socketPath); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("snapd socket %s did not appear: %w", b.socketPath, core.ErrBackendUnavailable)
		}
		if err := b.sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

// IsClassic reports whether name needs --classic: a static allow-list
// first, then the confinement published in the store
func (b *Backend) IsClassic(ctx context.Context, name string) bool {
	if b.classic[name] {
		return true
	}
	if v, ok := b.confinement.Get(name); ok {
		return v
	}

	res, err := b.run.Run(ctx, runner.Command{Name: "snap", Args: []string{"info", name}})
	if err != nil {
		b.logger.Debug().Err(err).Str("snap", name).Msg("confinement query failed")
		return false
	}

	classic := publishesClassic(res.Stdout)
	b.confinement.Add(name, classic)
	return classic
}

// Install installs a snap, adding --classic when required
func (b *Backend) Install(ctx context.Context, name string) error {
	args := []string{"install"}
	if b.IsClassic(ctx, name) {
		args = append(args, "--classic")
	}
	args = append(args, name)

	if _, err := b.run.Run(ctx, runner.Command{Name: "snap", Args: args, Root: true}); err != nil {
		return fmt.Errorf("installing snap %s: %w", name, err)
	}
	return nil
}

// Remove removes a snap
func (b *Backend) Remove(ctx context.Context, name string) error {
	if _, err := b.run.Run(ctx, runner.Command{Name: "snap", Args: []string{"remove", name}, Root: true}); err != nil {
		return fmt.Errorf("removing snap %s: %w", name, err)
	}
	return nil
}

// parseList takes the first column of `snap list`, skipping the header
func parseList(out string) map[string]struct{} {
	installed := make(map[string]struct{})
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || (i == 0 && fields[0] == "Name") {
			continue
		}
		installed[fields[0]] = struct{}{}
	}
	return installed
}

// publishesClassic reads `snap info` output. Installed snaps print a
// confinement field; store-only snaps mark classic channels in the notes.
func publishesClassic(out string) bool {
	inChannels := false
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if key, value, ok := strings.Cut(trimmed, ":"); ok && !strings.HasPrefix(line, " ") {
			inChannels = key == "channels"
			switch key {
			case "confinement":
				return strings.TrimSpace(value) == "classic"
			case "installed":
				if strings.HasSuffix(strings.TrimSpace(value), " classic") {
					return true
				}
			}
			continue
		}
		if inChannels && strings.HasPrefix(line, " ") {
			fields := strings.Fields(trimmed)
			if len(fields) > 0 && fields[len(fields)-1] == "classic" {
				return true
			}
		}
	}
	return false
}

func unavailable(step string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w", step, errors.Join(core.ErrBackendUnavailable, err))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ core.Backend = (*Backend)(nil)
