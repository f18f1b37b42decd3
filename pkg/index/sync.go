// Package index fetches catalog overlay files from a git repository into the
// cache directory, where catalog.Load merges them over the built-in catalog.
package index

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/catalog"
	"github.com/arc-language/ultrabunt/pkg/core"
)

// OverlayDirName is the directory under the cache dir holding overlay files
const OverlayDirName = "catalog"

// repoCatalogDir is where overlay files live inside the repository
const repoCatalogDir = "catalog"

// Config configures a Syncer
type Config struct {
	RepoURL  string
	Branch   string
	CacheDir string
	Progress io.Writer // git progress output, nil for none
	Logger   *zerolog.Logger
}

// Result describes a completed sync
type Result struct {
	Commit string
	Files  []string
	Dir    string
}

// Syncer clones the catalog repository and installs its overlay files
type Syncer struct {
	config Config
	logger zerolog.Logger
	clone  func(ctx context.Context, dir string) (string, error)
}

// New creates a Syncer
func New(cfg Config) *Syncer {
	if cfg.RepoURL == "" {
		cfg.RepoURL = core.DefaultCatalogRepo
	}
	if cfg.Branch == "" {
		cfg.Branch = core.DefaultCatalogBranch
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Syncer{
		config: cfg,
		logger: logger.With().Str("component", "index").Logger(),
	}
	s.clone = s.gitClone
	return s
}

// OverlayDir returns the overlay directory for cacheDir
func OverlayDir(cacheDir string) string {
	return filepath.Join(cacheDir, OverlayDirName)
}

// Sync clones the repository and replaces the overlay directory with its
// catalog files. The new files are validated against the built-in catalog
// first; a broken overlay leaves the previous one in place.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	tempDir, err := os.MkdirTemp("", "ultrabunt-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	s.logger.Info().Str("repo", s.config.RepoURL).Str("branch", s.config.Branch).Msg("syncing catalog overlay")

	commit, err := s.clone(ctx, tempDir)
	if err != nil {
		return nil, fmt.Errorf("git clone failed: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(tempDir, repoCatalogDir, "*.toml"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s has no %s/*.toml files", s.config.RepoURL, repoCatalogDir)
	}

	if err := os.MkdirAll(s.config.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	staging, err := os.MkdirTemp(s.config.CacheDir, OverlayDirName+".new-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	res := &Result{Commit: commit, Dir: OverlayDir(s.config.CacheDir)}
	for _, src := range files {
		name := filepath.Base(src)
		if err := copyFile(src, filepath.Join(staging, name)); err != nil {
			return nil, fmt.Errorf("copying %s: %w", name, err)
		}
		res.Files = append(res.Files, name)
	}

	if _, err := catalog.Load(staging); err != nil {
		return nil, fmt.Errorf("rejecting overlay: %w", err)
	}

	if err := os.RemoveAll(res.Dir); err != nil {
		return nil, fmt.Errorf("removing old overlay: %w", err)
	}
	if err := os.Rename(staging, res.Dir); err != nil {
		return nil, fmt.Errorf("installing overlay: %w", err)
	}

	s.logger.Info().Str("commit", commit).Int("files", len(res.Files)).Msg("catalog overlay updated")
	return res, nil
}

func (s *Syncer) gitClone(ctx context.Context, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           s.config.RepoURL,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         1,
		Progress:      s.config.Progress,
	})
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
