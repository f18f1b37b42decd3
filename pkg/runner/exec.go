package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// Exec runs commands on the host, elevating with sudo when a command needs root
type Exec struct {
	UseSudo bool          // Prefix root commands with sudo -E when not already root
	Timeout time.Duration // Per-command limit, zero for none
	Live    io.Writer     // Optional live copy of the combined output

	lookPath func(string) (string, error)
	geteuid  func() int
}

// NewExec creates a host runner
func NewExec(useSudo bool, timeout time.Duration) *Exec {
	return &Exec{
		UseSudo:  useSudo,
		Timeout:  timeout,
		lookPath: exec.LookPath,
		geteuid:  os.Geteuid,
	}
}

// LookPath resolves a program on PATH
func (e *Exec) LookPath(name string) (string, error) {
	return e.lookPath(name)
}

// Run executes cmd, capturing its output. The child gets its own process group
// and the whole group is killed when ctx is cancelled.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if _, err := e.lookPath(cmd.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, core.ErrBackendUnavailable)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	name, args := e.argv(cmd)
	if name != cmd.Name {
		if _, err := e.lookPath(name); err != nil {
			return nil, fmt.Errorf("%s needs %s: %w", cmd.Name, name, core.ErrBackendUnavailable)
		}
	}
	c := exec.Command(name, args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = cmd.Stdin
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	if e.Live != nil {
		live := &lockedWriter{w: e.Live}
		c.Stdout = io.MultiWriter(&stdout, live)
		c.Stderr = io.MultiWriter(&stderr, live)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Name, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		case <-done:
		}
	}()

	waitErr := c.Wait()
	res := &Result{
		ExitCode: c.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s aborted: %w", cmd.String(), ctx.Err())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, &core.CommandError{
				Command:  cmd.String(),
				ExitCode: exitErr.ExitCode(),
				Output:   res.Combined(),
				Err:      waitErr,
			}
		}
		return res, fmt.Errorf("running %s: %w", cmd.String(), waitErr)
	}

	return res, nil
}

// argv applies the privilege wrapper
func (e *Exec) argv(cmd Command) (string, []string) {
	if cmd.Root && e.UseSudo && e.geteuid() != 0 {
		return "sudo", append([]string{"-E", cmd.Name}, cmd.Args...)
	}
	return cmd.Name, cmd.Args
}

// lockedWriter serialises the stdout and stderr copiers onto one writer
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
