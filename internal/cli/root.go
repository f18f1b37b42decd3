// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/arc-language/ultrabunt"
	"github.com/arc-language/ultrabunt/pkg/catalog"
	"github.com/arc-language/ultrabunt/pkg/core"
)

var (
	cfgFile    string
	debug      bool
	logFile    string
	minimal    bool
	coreOnly   bool
	exclude    []string
	noCategory = make(map[string]*bool)

	config *core.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ultrabunt",
	Short: "Curated app installer for Ubuntu and Linux Mint",
	Long: `ultrabunt - curated app installer for Ubuntu and Linux Mint

Installs and removes a curated catalog of applications through apt, snap,
flatpak, npm, cargo and vendor installers, and tracks what is installed.
Run without a command on a terminal to open the interactive menu.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = loadConfig(cmd)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal() {
			return cmd.Help()
		}
		return runMenu(cmd, args)
	},
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signalContext(context.Background())
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	colError.Printf("Error: %v\n", err)
	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintln(os.Stderr, rootCmd.UsageString())
	}
	return 1
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ultrabunt/config.yaml)")
	flags.BoolVar(&debug, "debug", false, "enable debug logging and show backend output")
	flags.StringVar(&logFile, "log-file", "", "operation log (default "+core.DefaultLogFile+")")
	flags.BoolVar(&minimal, "minimal", false, "hide every category not marked core")
	flags.BoolVar(&coreOnly, "core-only", false, "alias of --minimal")
	flags.StringSliceVar(&exclude, "exclude", nil, "comma separated categories to hide")

	for _, c := range builtinCategories() {
		noCategory[c.ID] = flags.Bool("no-"+c.ID, false, "hide the "+c.DisplayName+" category")
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// usageError marks errors that should be followed by the usage text
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func builtinCategories() []core.Category {
	cat, err := catalog.Load("")
	if err != nil {
		return nil
	}
	return cat.Categories()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// newManager builds the manager for commands that touch packages
func newManager(opts ultrabunt.Options) (*ultrabunt.Manager, error) {
	opts.Config = config
	if opts.Progress == nil {
		opts.Progress = downloadProgress
	}
	if debug && opts.Live == nil {
		opts.Live = os.Stderr
	}

	m, err := ultrabunt.NewManager(opts)
	if err != nil {
		return nil, err
	}

	if p, err := m.Platform(); err == nil {
		m.Logger().Debug().Str("platform", p.String()).Msg("detected platform")
		if !p.Supported() {
			colWarn.Printf("Warning: %s is not Ubuntu or Linux Mint, some packages may not install\n", p.PrettyName)
		}
	}
	return m, nil
}
