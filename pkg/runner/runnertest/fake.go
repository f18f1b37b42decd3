// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// Response is the scripted outcome of a command
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

type rule struct {
	prefix string
	fn     func(runner.Command) Response
}

// Fake records every command and answers from prefix rules. Later rules win.
// Unmatched commands succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	binaries map[string]bool
	rules    []rule
	calls    []runner.Command
}

// NewFake creates a fake where only the named binaries exist on PATH
func NewFake(binaries ...string) *Fake {
	f := &Fake{binaries: make(map[string]bool)}
	for _, b := range binaries {
		f.binaries[b] = true
	}
	return f
}

// AddBinary makes a binary resolvable
func (f *Fake) AddBinary(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binaries[name] = true
}

// RemoveBinary makes a binary unresolvable
func (f *Fake) RemoveBinary(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.binaries, name)
}

// On answers commands whose command line starts with prefix
func (f *Fake) On(prefix string, resp Response) {
	f.Handle(prefix, func(runner.Command) Response { return resp })
}

// Handle answers commands whose command line starts with prefix using fn
func (f *Fake) Handle(prefix string, fn func(runner.Command) Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, fn: fn})
}

// LookPath implements runner.Runner
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.binaries[name] {
		if strings.HasPrefix(name, "/") {
			return name, nil
		}
		return "/usr/bin/" + name, nil
	}
	return "", exec.ErrNotFound
}

// Run implements runner.Runner
func (f *Fake) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	available := f.binaries[cmd.Name]
	var fn func(runner.Command) Response
	line := cmd.String()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			fn = f.rules[i].fn
			break
		}
	}
	f.mu.Unlock()

	if !available {
		return nil, fmt.Errorf("%s: %w", cmd.Name, core.ErrBackendUnavailable)
	}

	var resp Response
	if fn != nil {
		resp = fn(cmd)
	}

	res := &runner.Result{ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &core.CommandError{Command: line, ExitCode: resp.ExitCode, Output: res.Combined()}
	}
	return res, nil
}

// Calls returns a copy of every recorded command
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many recorded command lines start with prefix
func (f *Fake) Count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// Reset clears recorded calls
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
