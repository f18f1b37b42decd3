package cache

import (
	"context"
	"sync"
)

// Refresh is the handle of one background rebuild
type Refresh struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the rebuild finishes
func (r *Refresh) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the rebuild finishes and returns its error
func (r *Refresh) Wait() error {
	<-r.done
	return r.err
}

// Cancel stops the rebuild; the previous set stays in place
func (r *Refresh) Cancel() {
	r.cancel()
}

// Running reports whether the rebuild is still in flight
func (r *Refresh) Running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Refresher runs at most one background rebuild at a time
type Refresher struct {
	cache *Cache

	mu      sync.Mutex
	current *Refresh
}

// NewRefresher creates a refresher for c
func NewRefresher(c *Cache) *Refresher {
	return &Refresher{cache: c}
}

// StartRefresh launches a background rebuild, or returns the one in flight
func (r *Refresher) StartRefresh(ctx context.Context) *Refresh {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.Running() {
		return r.current
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Refresh{cancel: cancel, done: make(chan struct{})}
	r.current = h

	go func() {
		defer cancel()
		h.err = r.cache.Rebuild(ctx)
		close(h.done)
	}()

	return h
}

// Current returns the last started refresh, or nil
func (r *Refresher) Current() *Refresh {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
