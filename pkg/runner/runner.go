// Package runner executes the external package-manager commands ultrabunt wraps.
package runner

import (
	"context"
	"io"
	"strings"
)

// Command describes one subprocess invocation
type Command struct {
	Name  string    // Program to run, looked up on PATH
	Args  []string  // Arguments
	Env   []string  // Extra KEY=VALUE pairs appended to the inherited environment
	Dir   string    // Working directory
	Root  bool      // Must run with root privileges
	Stdin io.Reader // Optional standard input
}

// String renders the command line for logs
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// Result holds the captured output of a finished command
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout followed by stderr
func (r *Result) Combined() string {
	if r == nil {
		return ""
	}
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Lines splits stdout into trimmed, non-empty lines
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Runner runs commands. A missing program yields core.ErrBackendUnavailable and a
// non-zero exit yields a *core.CommandError alongside the Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	LookPath(name string) (string, error)
}

// Exists reports whether name resolves on PATH
func Exists(r Runner, name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}
