package custom

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/apt"
	"github.com/arc-language/ultrabunt/pkg/core"
)

// DebTool is the part of the apt backend a .deb installer needs
type DebTool interface {
	PackageProber
	InstallFile(ctx context.Context, path string) error
	Remove(ctx context.Context, pkg string) error
	Architecture(ctx context.Context) (apt.Architecture, error)
}

// DebInstaller downloads a vendor .deb and installs it through apt-get. The
// Package field of the archive's control file is recorded next to the
// download cache and is the name Remove and the default probe use.
type DebInstaller struct {
	name     string
	url      string
	sha256   string
	pkg      string
	apt      DebTool
	client   *Client
	cacheDir string
	progress ProgressFunc
	detect   func(context.Context) (bool, error)
	logger   zerolog.Logger

	mu      sync.Mutex
	control string
}

// DebConfig configures a DebInstaller
type DebConfig struct {
	Name     string
	Package  string // dpkg name used until an install records the control name
	Spec     *core.CustomSpec
	Apt      DebTool
	Client   *Client
	CacheDir string
	Progress ProgressFunc
	Detect   func(context.Context) (bool, error)
	Logger   *zerolog.Logger
}

// NewDeb creates a .deb installer
func NewDeb(cfg DebConfig) (*DebInstaller, error) {
	if cfg.Spec == nil || cfg.Spec.URL == "" {
		return nil, fmt.Errorf("custom: %s: no .deb url", cfg.Name)
	}
	if cfg.Apt == nil {
		return nil, fmt.Errorf("custom: %s: .deb installer needs apt", cfg.Name)
	}
	if cfg.Client == nil {
		cfg.Client = NewClient()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.TempDir()
	}
	if cfg.Package == "" {
		cfg.Package = cfg.Name
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &DebInstaller{
		name:     cfg.Name,
		url:      cfg.Spec.URL,
		sha256:   cfg.Spec.SHA256,
		pkg:      cfg.Package,
		apt:      cfg.Apt,
		client:   cfg.Client,
		cacheDir: filepath.Join(cfg.CacheDir, "debs"),
		progress: cfg.Progress,
		detect:   cfg.Detect,
		logger:   logger.With().Str("installer", cfg.Name).Logger(),
	}, nil
}

// Install downloads, verifies and installs the package
func (d *DebInstaller) Install(ctx context.Context) error {
	url, err := d.resolveURL(ctx)
	if err != nil {
		return err
	}

	debPath := filepath.Join(d.cacheDir, d.name+".deb")
	if err := d.download(ctx, url, debPath); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("custom: %s: downloading %s: %w", d.name, url, ctx.Err())
		}
		return fmt.Errorf("custom: %s: downloading %s: %w: %w", d.name, url, core.ErrBackendCommandFailed, err)
	}
	defer os.Remove(debPath)

	if d.sha256 != "" {
		if err := verifyFileHash(debPath, d.sha256); err != nil {
			return fmt.Errorf("custom: %s: %w: %w", d.name, core.ErrBackendCommandFailed, err)
		}
	}

	info, err := ReadControl(debPath)
	if err != nil {
		return fmt.Errorf("custom: %s: reading control: %w: %w", d.name, core.ErrBackendCommandFailed, err)
	}
	if info.Package == "" {
		return fmt.Errorf("custom: %s: control file has no Package field: %w", d.name, core.ErrBackendCommandFailed)
	}
	if info.Package != d.pkg {
		d.logger.Warn().Str("expected", d.pkg).Str("control", info.Package).Msg("package name differs from catalog")
	}
	d.logger.Info().Str("package", info.Package).Str("version", info.Version).Msg("installing .deb")

	if err := d.apt.InstallFile(ctx, debPath); err != nil {
		return err
	}
	d.remember(info.Package)
	return nil
}

// Remove removes the dpkg package the .deb installed
func (d *DebInstaller) Remove(ctx context.Context) error {
	if err := d.apt.Remove(ctx, d.Package()); err != nil {
		return err
	}
	d.forget()
	return nil
}

// IsInstalled evaluates the detection rule, defaulting to dpkg
func (d *DebInstaller) IsInstalled(ctx context.Context) (bool, error) {
	if d.detect != nil {
		return d.detect(ctx)
	}
	return d.apt.IsInstalled(ctx, d.Package())
}

// Package returns the dpkg name of the installed package: the control name
// recorded by the last install, or the configured name
func (d *DebInstaller) Package() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.control != "" {
		return d.control
	}
	if data, err := os.ReadFile(d.recordPath()); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			d.control = name
			return name
		}
	}
	return d.pkg
}

func (d *DebInstaller) recordPath() string {
	return filepath.Join(d.cacheDir, d.name+".package")
}

func (d *DebInstaller) remember(pkg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.control = pkg
	if err := os.WriteFile(d.recordPath(), []byte(pkg+"\n"), 0644); err != nil {
		d.logger.Warn().Err(err).Msg("recording installed package name")
	}
}

func (d *DebInstaller) forget() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.control = ""
	if err := os.Remove(d.recordPath()); err != nil && !os.IsNotExist(err) {
		d.logger.Warn().Err(err).Msg("clearing installed package name")
	}
}

// resolveURL fills the {arch} placeholder with the dpkg architecture
func (d *DebInstaller) resolveURL(ctx context.Context) (string, error) {
	if !strings.Contains(d.url, "{arch}") {
		return d.url, nil
	}
	arch, err := d.apt.Architecture(ctx)
	if err != nil {
		return "", fmt.Errorf("custom: %s: detecting architecture: %w", d.name, err)
	}
	return strings.ReplaceAll(d.url, "{arch}", arch.String()), nil
}

func (d *DebInstaller) download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	written, err := d.client.Download(ctx, url, f, d.progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return err
	}

	d.logger.Debug().Int64("bytes", written).Str("path", destPath).Msg("downloaded")
	return nil
}

// verifyFileHash verifies the SHA256 hash of a file
func verifyFileHash(filePath, expectedHash string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("computing hash: %w", err)
	}

	actualHash := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actualHash, expectedHash) {
		return fmt.Errorf("hash mismatch: expected %s, got %s", expectedHash, actualHash)
	}
	return nil
}

var _ core.CustomInstaller = (*DebInstaller)(nil)
