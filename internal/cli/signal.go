// internal/cli/signal.go
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ExitInterrupted is the exit status after a second Ctrl+C
const ExitInterrupted = 130

// signalContext cancels ctx on the first SIGINT or SIGTERM, which kills the
// running backend command. A second signal exits immediately.
func signalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	stop := make(chan struct{})
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			colWarn.Printf("Received %v. Cancelling, press Ctrl+C again to exit now\n", sig)
			cancel()
		case <-stop:
			return
		}

		select {
		case <-sigs:
			os.Exit(ExitInterrupted)
		case <-stop:
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		close(stop)
		cancel()
	}
}
