// internal/cli/ops.go
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arc-language/ultrabunt"
)

var installCmd = &cobra.Command{
	Use:   "install <package...>",
	Short: "Install one or more packages",
	Long: `Install catalog packages with the method the catalog assigns them.
A package whose declared dependency is not installed is skipped.

Examples:
  ultrabunt install htop
  ultrabunt install docker docker-compose
  ultrabunt install vscode`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOps(cmd.Context(), "installed", args, func(m *ultrabunt.Manager, ctx context.Context, name string) error {
			return m.Install(ctx, name)
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <package...>",
	Short: "Remove one or more packages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOps(cmd.Context(), "removed", args, func(m *ultrabunt.Manager, ctx context.Context, name string) error {
			if deps := m.InstalledDependents(ctx, name); len(deps) > 0 {
				colWarn.Printf("Warning: %s is needed by %s\n", name, strings.Join(deps, ", "))
			}
			return m.Remove(ctx, name)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the installed-package cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(ultrabunt.Options{})
		if err != nil {
			return err
		}
		defer m.Close()

		if err := spin("Scanning installed packages", func() error { return m.Refresh(cmd.Context()) }); err != nil {
			return err
		}
		stats := m.CacheStats()
		colSuccess.Printf("✓ cache rebuilt (%d rebuilds, %d probes)\n", stats.Rebuilds, stats.Probes)
		return nil
	},
}

// runOps applies op to every name in order. A failed package is reported
// and the loop carries on; only cancellation stops it.
func runOps(ctx context.Context, verb string, names []string, op func(*ultrabunt.Manager, context.Context, string) error) error {
	m, err := newManager(ultrabunt.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	var failed int
	for _, name := range names {
		name := name
		if ctx.Err() != nil {
			colWarn.Printf("Skipping %s: cancelled\n", name)
			continue
		}

		err := spin(verbing(verb)+" "+name, func() error {
			return op(m, ctx, name)
		})
		reportResult(verb, name, err, m.LogPath())
		if err != nil {
			failed++
		}
	}

	if failed > 0 && len(names) > 1 {
		colWarn.Printf("%d of %d packages failed\n", failed, len(names))
	}
	return nil
}

func verbing(verb string) string {
	switch verb {
	case "installed":
		return "Installing"
	case "removed":
		return "Removing"
	}
	return verb
}
