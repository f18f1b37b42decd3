// Package dispatch routes install and remove requests for catalog records to
// the backend or custom installer that owns them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/cache"
	"github.com/arc-language/ultrabunt/pkg/core"
)

const (
	OpInstall = "install"
	OpRemove  = "remove"
)

// Catalog resolves package names
type Catalog interface {
	Get(name string) (core.PackageRecord, error)
	Dependents(name string) []core.PackageRecord
}

// Dispatcher performs install and remove operations
type Dispatcher struct {
	catalog  Catalog
	cache    *cache.Cache
	backends core.Backends
	customs  cache.Probe
	logger   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a dispatcher. customs may be nil.
func New(catalog Catalog, c *cache.Cache, backends core.Backends, customs cache.Probe, logger *zerolog.Logger) *Dispatcher {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Dispatcher{
		catalog:  catalog,
		cache:    c,
		backends: backends,
		customs:  customs,
		logger:   l.With().Str("component", "dispatch").Logger(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Install installs the named package after checking its dependency
func (d *Dispatcher) Install(ctx context.Context, name string) error {
	start := time.Now()
	rec, err := d.catalog.Get(name)
	if err != nil {
		return d.finish(OpInstall, core.PackageRecord{Name: name}, start, err)
	}

	if err := d.checkDependency(ctx, rec); err != nil {
		return d.finish(OpInstall, rec, start, err)
	}

	unlock := d.lock(rec.Method)
	err = d.install(ctx, rec)
	unlock()

	if err == nil {
		d.cache.UpdateOne(ctx, rec)
	}
	return d.finish(OpInstall, rec, start, err)
}

// Remove removes the named package. Installed dependents do not block the
// removal; they are logged and can be listed with InstalledDependents.
func (d *Dispatcher) Remove(ctx context.Context, name string) error {
	start := time.Now()
	rec, err := d.catalog.Get(name)
	if err != nil {
		return d.finish(OpRemove, core.PackageRecord{Name: name}, start, err)
	}

	if deps := d.InstalledDependents(ctx, name); len(deps) > 0 {
		d.logger.Warn().Str("package", name).Strs("dependents", deps).Msg("removing a package other installed packages depend on")
	}

	unlock := d.lock(rec.Method)
	err = d.remove(ctx, rec)
	unlock()

	if err == nil {
		d.cache.UpdateOne(ctx, rec)
	}
	return d.finish(OpRemove, rec, start, err)
}

// Status reports the record and installed state of name
func (d *Dispatcher) Status(ctx context.Context, name string) (core.PackageStatus, error) {
	rec, err := d.catalog.Get(name)
	if err != nil {
		return core.PackageStatus{}, &core.OpError{Op: "status", Package: name, Err: err}
	}
	return core.PackageStatus{Record: rec, Installed: d.cache.IsInstalled(ctx, rec)}, nil
}

// InstalledDependents lists the installed packages that declare name as their dependency
func (d *Dispatcher) InstalledDependents(ctx context.Context, name string) []string {
	var out []string
	for _, dep := range d.catalog.Dependents(name) {
		if d.cache.IsInstalled(ctx, dep) {
			out = append(out, dep.Name)
		}
	}
	return out
}

func (d *Dispatcher) checkDependency(ctx context.Context, rec core.PackageRecord) error {
	if rec.Dependency == "" {
		return nil
	}
	dep, err := d.catalog.Get(rec.Dependency)
	if err == nil && d.cache.IsInstalled(ctx, dep) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &core.DependencyError{Package: rec.Name, Dependency: rec.Dependency}
}

func (d *Dispatcher) install(ctx context.Context, rec core.PackageRecord) error {
	if rec.Method == core.MethodCustom {
		inst, err := d.custom(rec)
		if err != nil {
			return err
		}
		return inst.Install(ctx)
	}

	b, err := d.backend(rec)
	if err != nil {
		return err
	}
	if err := b.Ensure(ctx); err != nil {
		return fmt.Errorf("preparing %s: %w", b.Name(), err)
	}
	return b.Install(ctx, rec.BackendID)
}

func (d *Dispatcher) remove(ctx context.Context, rec core.PackageRecord) error {
	if rec.Method == core.MethodCustom {
		inst, err := d.custom(rec)
		if err != nil {
			return err
		}
		return inst.Remove(ctx)
	}

	b, err := d.backend(rec)
	if err != nil {
		return err
	}
	if !b.Available() {
		return fmt.Errorf("%s: %w", b.Name(), core.ErrBackendUnavailable)
	}
	return b.Remove(ctx, rec.BackendID)
}

func (d *Dispatcher) backend(rec core.PackageRecord) (core.Backend, error) {
	b := d.backends[rec.Method]
	if b == nil {
		return nil, fmt.Errorf("%s: %w", rec.Method, core.ErrBackendUnavailable)
	}
	return b, nil
}

func (d *Dispatcher) custom(rec core.PackageRecord) (core.CustomInstaller, error) {
	if d.customs != nil {
		if inst, ok := d.customs.Lookup(rec.Name); ok {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", rec.Name, core.ErrUnknownCustomInstaller)
}

// lock serialises operations that share a package database. Apt and custom
// installers both end up in dpkg.
func (d *Dispatcher) lock(m core.Method) func() {
	key := m.String()
	if m == core.MethodApt || m == core.MethodCustom {
		key = "dpkg"
	}

	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.Mutex{}
		d.locks[key] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// finish writes the single log line of an operation and wraps its error
func (d *Dispatcher) finish(op string, rec core.PackageRecord, start time.Time, err error) error {
	ev := d.logger.Info()
	if err != nil {
		ev = d.logger.Error().Err(err).Str("kind", string(core.Kind(err)))
		var cmdErr *core.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Output != "" {
			ev = ev.Str("output", cmdErr.Output)
		}
	}
	ev.Str("op", op).
		Str("package", rec.Name).
		Str("method", rec.Method.String()).
		Dur("took", time.Since(start)).
		Msg(op)

	if err != nil {
		return &core.OpError{Op: op, Package: rec.Name, Err: err}
	}
	return nil
}
