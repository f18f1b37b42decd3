// internal/cli/packages.go
package cli

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/arc-language/ultrabunt"
	"github.com/arc-language/ultrabunt/pkg/core"
)

var listInstalled bool

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List catalog categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(ultrabunt.Options{})
		if err != nil {
			return err
		}
		defer m.Close()

		cat := m.Catalog()
		for _, c := range m.Categories() {
			marker := " "
			if c.Core {
				marker = "*"
			}
			fmt.Printf("  %s %-12s %-28s %d packages\n", marker, c.ID, c.DisplayName, len(cat.ListByCategory(c.ID)))
		}
		fmt.Printf("\n* = core category, kept by --minimal\n")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List packages with their installed state",
	Long: `List catalog packages grouped by category. The installed-set cache is
rebuilt first, so apt, snap and flatpak states come from one listing each.

Examples:
  ultrabunt list
  ultrabunt list editors
  ultrabunt list --installed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var infoCmd = &cobra.Command{
	Use:   "info <package>",
	Short: "Show details about a package",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var statusCmd = &cobra.Command{
	Use:   "status <package...>",
	Short: "Show whether packages are installed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

func init() {
	listCmd.Flags().BoolVar(&listInstalled, "installed", false, "only show installed packages")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := newManager(ultrabunt.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	var categories []core.Category
	if len(args) == 1 {
		c, ok := m.Catalog().Category(args[0])
		if !ok || m.Catalog().Excluded(c.ID) {
			return &usageError{fmt.Errorf("unknown category %q", args[0])}
		}
		categories = []core.Category{c}
	} else {
		categories = m.Categories()
	}

	if err := spin("Scanning installed packages", func() error { return m.Refresh(ctx) }); err != nil {
		return err
	}

	for _, c := range categories {
		var rows []string
		for _, st := range m.List(ctx, c.ID) {
			if listInstalled && !st.Installed {
				continue
			}
			rows = append(rows, fmt.Sprintf("  %s %-24s %-8s %s", installedMark(st.Installed), st.Record.Name, st.Record.Method, st.Record.Description))
		}
		if len(rows) == 0 {
			continue
		}
		color.Bold.Println(c.DisplayName)
		fmt.Println(strings.Join(rows, "\n"))
		fmt.Println()
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := newManager(ultrabunt.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	st, err := m.Status(ctx, args[0])
	if err != nil {
		return err
	}
	rec := st.Record

	fmt.Printf("Name:         %s\n", rec.Name)
	fmt.Printf("Description:  %s\n", rec.Description)
	fmt.Printf("Category:     %s\n", rec.Category)
	fmt.Printf("Method:       %s\n", rec.Method)
	fmt.Printf("Backend ID:   %s\n", rec.BackendID)
	if rec.Dependency != "" {
		fmt.Printf("Requires:     %s\n", rec.Dependency)
	}
	if rec.Method == core.MethodCustom && rec.Detect.Kind != "" {
		fmt.Printf("Detected by:  %s %s\n", rec.Detect.Kind, rec.Detect.Target)
	}
	fmt.Printf("Installed:    %s\n", installedMark(st.Installed))

	if deps := m.Catalog().Dependents(rec.Name); len(deps) > 0 {
		names := make([]string, 0, len(deps))
		for _, d := range deps {
			names = append(names, d.Name)
		}
		fmt.Printf("Needed by:    %s\n", strings.Join(names, ", "))
	}

	if info, err := m.Info(ctx, rec.Name); err == nil {
		fmt.Printf("Version:      %s\n", info.Version)
		if info.Homepage != "" {
			fmt.Printf("Homepage:     %s\n", info.Homepage)
		}
		if len(info.Depends) > 0 {
			fmt.Printf("Depends:      %s\n", strings.Join(info.Depends, ", "))
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := newManager(ultrabunt.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	for _, name := range args {
		st, err := m.Status(ctx, name)
		if err != nil {
			colError.Printf("✗ %s: %v\n", name, err)
			continue
		}
		state := "not installed"
		if st.Installed {
			state = "installed"
		}
		fmt.Printf("  %s %-24s %s (%s)\n", installedMark(st.Installed), name, state, st.Record.Method)
	}
	return nil
}
