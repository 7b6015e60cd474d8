package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrRegistryClosed = errors.New("session registry closed")
	ErrRegistryFull   = errors.New("session registry full")
)

// Factory builds an uninitialized Store for a new client.
type Factory func() *Store

// Registry owns one Store per client id. Stores idle longer than the TTL are
// disposed by a janitor.
type Registry struct {
	factory     Factory
	idleTTL     time.Duration
	maxSessions int
	log         *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

type RegistryOption func(*Registry)

// WithMaxSessions caps the number of live stores. Zero means unbounded.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) { r.maxSessions = n }
}

func NewRegistry(factory Factory, idleTTL time.Duration, log *slog.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		factory: factory,
		idleTTL: idleTTL,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the janitor until Close. A non-positive TTL disables eviction.
func (r *Registry) Start() {
	if r.idleTTL <= 0 {
		return
	}
	interval := r.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				if n := r.Sweep(); n > 0 {
					r.log.Debug("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

// Get returns the store of clientID, creating and initializing it on first use.
// When the registry is at capacity idle stores are evicted first; if none are
// idle ErrRegistryFull is returned.
func (r *Registry) Get(ctx context.Context, clientID string) (*Store, error) {
	var evicted []*Store
	r.mu.Lock()
	defer func() {
		r.mu.Unlock()
		for _, s := range evicted {
			s.Dispose()
		}
	}()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if e, ok := r.entries[clientID]; ok {
		e.lastSeen = r.now()
		return e.store, nil
	}
	if r.maxSessions > 0 && len(r.entries) >= r.maxSessions {
		evicted = r.evictIdleLocked()
		if len(r.entries) >= r.maxSessions {
			return nil, ErrRegistryFull
		}
	}
	s := r.factory()
	if err := s.Init(ctx); err != nil {
		s.Dispose()
		return nil, err
	}
	r.entries[clientID] = &entry{store: s, lastSeen: r.now()}
	return s, nil
}

// Lookup returns an existing store without creating one.
func (r *Registry) Lookup(clientID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[clientID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.store, true
}

// Drop disposes the store of clientID.
func (r *Registry) Drop(clientID string) {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	delete(r.entries, clientID)
	r.mu.Unlock()
	if ok {
		e.store.Dispose()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep disposes stores idle past the TTL and reports how many went.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	idle := r.evictIdleLocked()
	r.mu.Unlock()
	for _, s := range idle {
		s.Dispose()
	}
	return len(idle)
}

// evictIdleLocked unregisters stores idle past the TTL. The caller disposes
// them after releasing mu.
func (r *Registry) evictIdleLocked() []*Store {
	if r.idleTTL <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.idleTTL)
	var idle []*Store
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.store)
			delete(r.entries, id)
		}
	}
	return idle
}

// Close stops the janitor and disposes every store.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	for _, e := range entries {
		e.store.Dispose()
	}
}
