// pkg/core/interface.go
package core

import "context"

// Backend defines the common interface for the package managers ultrabunt wraps
type Backend interface {
	// Name returns the backend name (e.g., "apt", "snap")
	Name() string

	// Method returns the catalog method served by this backend
	Method() Method

	// Available checks if the backend's CLI is present on the system
	Available() bool

	// ListInstalled returns every identifier the backend reports installed.
	// An absent CLI yields an empty set and a nil error.
	ListInstalled(ctx context.Context) (map[string]struct{}, error)

	// IsInstalled probes a single identifier. An absent CLI yields false.
	IsInstalled(ctx context.Context, id string) (bool, error)

	// Ensure makes the backend ready for a mutating call, bootstrapping it if needed
	Ensure(ctx context.Context) error

	// Install installs an identifier
	Install(ctx context.Context, id string) error

	// Remove removes an identifier
	Remove(ctx context.Context, id string) error
}

// CustomInstaller is the bespoke install logic registered for one package name
type CustomInstaller interface {
	Install(ctx context.Context) error
	Remove(ctx context.Context) error
	IsInstalled(ctx context.Context) (bool, error)
}

// Backends maps each method to the backend serving it
type Backends map[Method]Backend
