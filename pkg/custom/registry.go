// Package custom holds the bespoke installers of tools no package manager
// ships: one core.CustomInstaller per catalog name.
package custom

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// Registry maps package names to their installers. It is built at startup
// and read concurrently afterwards.
type Registry struct {
	mu         sync.RWMutex
	installers map[string]core.CustomInstaller
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{installers: make(map[string]core.CustomInstaller)}
}

// Register adds the installer for name
func (r *Registry) Register(name string, inst core.CustomInstaller) error {
	if name == "" || inst == nil {
		return fmt.Errorf("custom: invalid registration for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.installers[name]; dup {
		return fmt.Errorf("custom: installer for %q already registered", name)
	}
	r.installers[name] = inst
	return nil
}

// Lookup returns the installer registered for name
func (r *Registry) Lookup(name string) (core.CustomInstaller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.installers[name]
	return inst, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.installers))
	for name := range r.installers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered installers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.installers)
}
