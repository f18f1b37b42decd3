// internal/cli/version.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ultrabunt version %s\n", Version)
		fmt.Println("Curated app installer for Ubuntu and Linux Mint")
		fmt.Println("https://github.com/arc-language/ultrabunt")
	},
}
