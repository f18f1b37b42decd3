// internal/cli/catalog.go
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arc-language/ultrabunt"
	"github.com/arc-language/ultrabunt/pkg/catalog"
	"github.com/arc-language/ultrabunt/pkg/index"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalog overlay files",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch catalog overlay files from the catalog repository",
	Long: `Clone the configured catalog repository and install its catalog/*.toml
files into the cache directory. They are merged over the built-in catalog
from the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(ultrabunt.Options{})
		if err != nil {
			return err
		}
		defer m.Close()

		var progress io.Writer
		if debug {
			progress = os.Stderr
		}

		colArrow.Print("-> ")
		fmt.Printf("Updating catalog from %s (%s)\n", config.CatalogRepo, config.CatalogBranch)
		res, err := m.SyncCatalog(cmd.Context(), progress)
		if err != nil {
			return err
		}
		colSuccess.Printf("✓ %d overlay files at %s (commit %.12s)\n", len(res.Files), res.Dir, res.Commit)
		return nil
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the built-in catalog merged with an overlay directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := index.OverlayDir(config.CacheDir)
		if len(args) == 1 {
			dir = args[0]
		}

		cat, err := catalog.Load(dir)
		if err != nil {
			return err
		}
		colSuccess.Printf("✓ catalog valid: %d packages in %d categories\n", len(cat.Names()), len(cat.Categories()))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogSyncCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
}
