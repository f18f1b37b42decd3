package coretest

import (
	"context"
	"sync"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// Installer is an in-memory core.CustomInstaller
type Installer struct {
	InstallErr error
	RemoveErr  error

	mu        sync.Mutex
	installed bool
	calls     map[string]int
}

// NewInstaller creates a fake custom installer
func NewInstaller(installed bool) *Installer {
	return &Installer{installed: installed, calls: make(map[string]int)}
}

// Calls returns how often a method was called
func (i *Installer) Calls(call string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[call]
}

func (i *Installer) Install(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls["Install"]++
	if i.InstallErr != nil {
		return i.InstallErr
	}
	i.installed = true
	return nil
}

func (i *Installer) Remove(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls["Remove"]++
	if i.RemoveErr != nil {
		return i.RemoveErr
	}
	i.installed = false
	return nil
}

func (i *Installer) IsInstalled(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls["IsInstalled"]++
	return i.installed, nil
}

// Registry is a map-backed custom installer lookup
type Registry map[string]core.CustomInstaller

// Lookup returns the installer registered for name
func (r Registry) Lookup(name string) (core.CustomInstaller, bool) {
	inst, ok := r[name]
	return inst, ok
}

var _ core.CustomInstaller = (*Installer)(nil)
