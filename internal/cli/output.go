// internal/cli/output.go
package cli

import (
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/schollz/progressbar/v3"

	"github.com/arc-language/ultrabunt/pkg/core"
)

var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#2E7D32")
	colArrow   = color.HEX("#FFEB3B")
)

// downloadProgress draws a byte progress bar while a .deb downloads
func downloadProgress(size int64, desc string, w io.Writer) io.Writer {
	bar := progressbar.DefaultBytes(size, desc)
	return io.MultiWriter(w, bar)
}

// spin shows a spinner with desc until fn returns. With --debug the backend
// output is streamed instead, so no spinner is drawn.
func spin(desc string, fn func() error) error {
	if debug || !isTerminal() {
		colArrow.Print("-> ")
		color.Bold.Println(desc)
		return fn()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	err := fn()
	close(done)
	bar.Finish()
	return err
}

// reportResult prints the ✓/✗ line for one package operation
func reportResult(verb, name string, err error, logPath string) {
	if err == nil {
		colSuccess.Printf("✓ %s %s\n", name, verb)
		return
	}
	colError.Printf("✗ %s: %v\n", name, err)
	colInfo.Printf("  kind: %s, details in %s\n", core.Kind(err), logPath)
}

// installedMark renders the installed marker used by list and status
func installedMark(installed bool) string {
	if installed {
		return color.Green.Sprint("✓")
	}
	return color.Gray.Sprint("·")
}
