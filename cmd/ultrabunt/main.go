// cmd/ultrabunt/main.go
package main

import (
	"os"

	"github.com/arc-language/ultrabunt/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
