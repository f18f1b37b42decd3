// pkg/core/errors.go
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the package name is not in the catalog
	ErrNotFound = errors.New("package not found")

	// ErrDependencyMissing indicates a declared dependency is not installed
	ErrDependencyMissing = errors.New("dependency not installed")

	// ErrBackendUnavailable indicates the backend CLI is missing and could not be bootstrapped
	ErrBackendUnavailable = errors.New("backend not available")

	// ErrBackendCommandFailed indicates the backend command exited non-zero
	ErrBackendCommandFailed = errors.New("backend command failed")

	// ErrUnknownCustomInstaller indicates no bespoke installer is registered for the name
	ErrUnknownCustomInstaller = errors.New("no custom installer registered")
)

// ErrorKind classifies dispatcher failures
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindNotFound               ErrorKind = "NotFound"
	KindDependencyMissing      ErrorKind = "DependencyMissing"
	KindBackendUnavailable     ErrorKind = "BackendUnavailable"
	KindBackendCommandFailed   ErrorKind = "BackendCommandFailed"
	KindUnknownCustomInstaller ErrorKind = "UnknownCustomInstaller"
	KindCanceled               ErrorKind = "Canceled"
	KindOther                  ErrorKind = "Other"
)

// Kind maps an error to its taxonomy kind
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDependencyMissing):
		return KindDependencyMissing
	case errors.Is(err, ErrUnknownCustomInstaller):
		return KindUnknownCustomInstaller
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrBackendCommandFailed):
		return KindBackendCommandFailed
	default:
		return KindOther
	}
}

// OpError wraps an error with the operation and package it concerns
type OpError struct {
	Op      string // Operation that failed
	Package string // Package name if applicable
	Err     error  // Underlying error
}

func (e *OpError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy kind of the wrapped error
func (e *OpError) Kind() ErrorKind {
	return Kind(e.Err)
}

// CommandError carries the outcome of a failed subprocess
type CommandError struct {
	Command  string
	ExitCode int
	Output   string // combined stdout and stderr
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if tail := lastLine(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is makes every CommandError match ErrBackendCommandFailed
func (e *CommandError) Is(target error) bool {
	return target == ErrBackendCommandFailed
}

// DependencyError names the dependency that blocked an install
type DependencyError struct {
	Package    string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s requires %s to be installed first", e.Package, e.Dependency)
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDependencyMissing
}

// IsNotFound checks if an error is a catalog miss
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
