// errors.go
package ultrabunt

import "github.com/arc-language/ultrabunt/pkg/core"

var (
	// ErrNotFound indicates the package name is not in the catalog
	ErrNotFound = core.ErrNotFound

	// ErrDependencyMissing indicates a declared dependency is not installed
	ErrDependencyMissing = core.ErrDependencyMissing

	// ErrBackendUnavailable indicates the backend CLI is missing and could not be bootstrapped
	ErrBackendUnavailable = core.ErrBackendUnavailable

	// ErrBackendCommandFailed indicates the backend command exited non-zero
	ErrBackendCommandFailed = core.ErrBackendCommandFailed

	// ErrUnknownCustomInstaller indicates no bespoke installer is registered for the name
	ErrUnknownCustomInstaller = core.ErrUnknownCustomInstaller
)

// Error wraps an error with the operation and package it concerns
type Error = core.OpError

// Kind maps an error to its taxonomy kind
func Kind(err error) core.ErrorKind {
	return core.Kind(err)
}
