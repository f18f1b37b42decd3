// Package coretest provides in-memory backends and custom installers for tests.
package coretest

import (
	"context"
	"sync"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// Backend is an in-memory core.Backend that records every call
type Backend struct {
	M       core.Method
	Missing bool // behave as if the CLI were absent

	ListErr    error
	InstallErr error
	RemoveErr  error
	EnsureErr  error

	// Block, when set, makes Install wait for it or for ctx
	Block chan struct{}

	mu        sync.Mutex
	installed map[string]bool
	calls     map[string]int
	order     []string
}

// NewBackend creates a fake for method m with the given ids installed
func NewBackend(m core.Method, installed ...string) *Backend {
	b := &Backend{M: m, installed: make(map[string]bool), calls: make(map[string]int)}
	for _, id := range installed {
		b.installed[id] = true
	}
	return b
}

func (b *Backend) note(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[call]++
	b.order = append(b.order, call)
}

// Calls returns how often a method was called ("ListInstalled", "IsInstalled",
// "Ensure", "Install", "Remove")
func (b *Backend) Calls(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[call]
}

// Mutations returns the total of Ensure, Install and Remove calls
func (b *Backend) Mutations() int {
	return b.Calls("Ensure") + b.Calls("Install") + b.Calls("Remove")
}

// Order returns the calls in order
func (b *Backend) Order() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// SetInstalled changes state behind the cache's back
func (b *Backend) SetInstalled(id string, installed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if installed {
		b.installed[id] = true
	} else {
		delete(b.installed, id)
	}
}

func (b *Backend) Name() string       { return b.M.String() }
func (b *Backend) Method() core.Method { return b.M }
func (b *Backend) Available() bool    { return !b.Missing }

func (b *Backend) ListInstalled(ctx context.Context) (map[string]struct{}, error) {
	b.note("ListInstalled")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Missing {
		return map[string]struct{}{}, nil
	}
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]struct{}, len(b.installed))
	for id := range b.installed {
		out[id] = struct{}{}
	}
	return out, nil
}

func (b *Backend) IsInstalled(ctx context.Context, id string) (bool, error) {
	b.note("IsInstalled")
	if b.Missing {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed[id], nil
}

func (b *Backend) Ensure(ctx context.Context) error {
	b.note("Ensure")
	if b.Missing && b.EnsureErr == nil {
		return core.ErrBackendUnavailable
	}
	return b.EnsureErr
}

func (b *Backend) Install(ctx context.Context, id string) error {
	b.note("Install")
	if b.Block != nil {
		select {
		case <-b.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.InstallErr != nil {
		return b.InstallErr
	}
	b.SetInstalled(id, true)
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	b.note("Remove")
	if b.RemoveErr != nil {
		return b.RemoveErr
	}
	b.SetInstalled(id, false)
	return nil
}

var _ core.Backend = (*Backend)(nil)
