// Package cache keeps the process-wide set of installed (method, backend id)
// pairs. Apt, snap and flatpak are bulk-listed on Rebuild; npm, cargo and
// custom records are always probed live.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// Probe answers whether a custom record is installed
type Probe interface {
	Lookup(name string) (core.CustomInstaller, bool)
}

// Stats counts cache traffic
type Stats struct {
	Rebuilds int64
	Hits     int64
	Misses   int64
	Probes   int64
}

// Cache is the installed-set cache
type Cache struct {
	backends core.Backends
	customs  Probe
	logger   zerolog.Logger

	mu  sync.RWMutex
	set map[core.Key]struct{}

	// writes remembers the last single-key write so a rebuild whose listing
	// started earlier cannot undo it
	epoch  uint64
	writes map[core.Key]write

	rebuilds atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	probes   atomic.Int64
}

type write struct {
	epoch     uint64
	installed bool
}

// New creates an empty cache. customs may be nil when no custom installers exist.
func New(backends core.Backends, customs Probe, logger *zerolog.Logger) *Cache {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Cache{
		backends: backends,
		customs:  customs,
		logger:   l.With().Str("component", "cache").Logger(),
		set:      make(map[core.Key]struct{}),
		writes:   make(map[core.Key]write),
	}
}

// Rebuild bulk-lists every bulk-listed backend concurrently and swaps the
// merged result in. A failing backend contributes an empty set; only
// cancellation fails the rebuild, leaving the previous set in place.
// Single-key writes made while the listing ran are replayed over it.
func (c *Cache) Rebuild(ctx context.Context) error {
	c.mu.RLock()
	start := c.epoch
	c.mu.RUnlock()

	var methods []core.Method
	for _, m := range core.AllMethods {
		if m.BulkListed() && c.backends[m] != nil {
			methods = append(methods, m)
		}
	}

	results := make([]map[string]struct{}, len(methods))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range methods {
		i, m := i, m
		g.Go(func() error {
			ids, err := c.backends[m].ListInstalled(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn().Err(err).Str("method", m.String()).Msg("bulk listing failed, treating as empty")
				return nil
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuilding installed set: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rebuilding installed set: %w", err)
	}

	next := make(map[core.Key]struct{})
	for i, m := range methods {
		for id := range results[i] {
			next[core.Key{Method: m, BackendID: id}] = struct{}{}
		}
	}

	c.mu.Lock()
	for k, w := range c.writes {
		if w.epoch <= start {
			continue
		}
		if w.installed {
			next[k] = struct{}{}
		} else {
			delete(next, k)
		}
	}
	c.set = next
	c.mu.Unlock()

	c.rebuilds.Add(1)
	c.logger.Info().Int("entries", len(next)).Msg("installed set rebuilt")
	return nil
}

// Lookup reads the set without side effects. known is false for methods the
// cache never holds.
func (c *Cache) Lookup(rec core.PackageRecord) (installed, known bool) {
	if !rec.Method.BulkListed() {
		return false, false
	}
	c.mu.RLock()
	_, installed = c.set[rec.Key()]
	c.mu.RUnlock()
	return installed, true
}

// IsInstalled answers from the set for bulk-listed methods, falling back to
// ProbeAndRecord on a miss. Other methods are probed live every time.
func (c *Cache) IsInstalled(ctx context.Context, rec core.PackageRecord) bool {
	if installed, known := c.Lookup(rec); known {
		if installed {
			c.hits.Add(1)
			return true
		}
		c.misses.Add(1)
		return c.ProbeAndRecord(ctx, rec)
	}
	return c.probe(ctx, rec)
}

// ProbeAndRecord probes rec live and writes the answer into the set
func (c *Cache) ProbeAndRecord(ctx context.Context, rec core.PackageRecord) bool {
	installed := c.probe(ctx, rec)
	if ctx.Err() != nil {
		return installed
	}
	c.record(rec, installed)
	return installed
}

// UpdateOne re-probes rec after a mutation and sets or clears its key
func (c *Cache) UpdateOne(ctx context.Context, rec core.PackageRecord) bool {
	return c.ProbeAndRecord(ctx, rec)
}

// Set forces the state of one record
func (c *Cache) Set(rec core.PackageRecord, installed bool) {
	c.record(rec, installed)
}

func (c *Cache) record(rec core.PackageRecord, installed bool) {
	if !rec.Method.BulkListed() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.writes[rec.Key()] = write{epoch: c.epoch, installed: installed}
	if installed {
		c.set[rec.Key()] = struct{}{}
	} else {
		delete(c.set, rec.Key())
	}
}

func (c *Cache) probe(ctx context.Context, rec core.PackageRecord) bool {
	c.probes.Add(1)

	var (
		installed bool
		err       error
	)
	if rec.Method == core.MethodCustom {
		inst, ok := c.lookupCustom(rec.Name)
		if !ok {
			return false
		}
		installed, err = inst.IsInstalled(ctx)
	} else {
		b := c.backends[rec.Method]
		if b == nil {
			return false
		}
		installed, err = b.IsInstalled(ctx, rec.BackendID)
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("package", rec.Name).Msg("probe failed")
		return false
	}
	return installed
}

func (c *Cache) lookupCustom(name string) (core.CustomInstaller, bool) {
	if c.customs == nil {
		return nil, false
	}
	return c.customs.Lookup(name)
}

// Snapshot copies the current set
func (c *Cache) Snapshot() map[core.Key]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[core.Key]struct{}, len(c.set))
	for k := range c.set {
		out[k] = struct{}{}
	}
	return out
}

// Len returns the number of keys held
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.set)
}

// Stats returns the traffic counters
func (c *Cache) Stats() Stats {
	return Stats{
		Rebuilds: c.rebuilds.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Probes:   c.probes.Load(),
	}
}
