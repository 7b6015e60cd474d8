// Package session is the single source of truth for who is signed in on one
// client: it follows the backend's auth-state events, resolves the identity
// behind each principal and runs the account lifecycle operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/identity"
)

var (
	ErrDisposed         = errors.New("session store disposed")
	ErrNotInitialized   = errors.New("session store not initialized")
	ErrResolution       = errors.New("identity could not be resolved")
	ErrSignupIncomplete = errors.New("account created but workspace setup failed")
	ErrForbidden        = errors.New("operation not permitted for this role")
	ErrMemberNotFound   = errors.New("team member not found")
	ErrInvalidMember    = errors.New("invalid team member")
)

// Resolver maps a principal to the user, company and role behind it.
type Resolver interface {
	Resolve(ctx context.Context, p *models.Principal) (*identity.Identity, error)
}

// Snapshot is an immutable view of the store. IsAuthenticated implies
// Principal != nil.
type Snapshot struct {
	Principal       *models.Principal `json:"-"`
	User            *models.User      `json:"user"`
	Company         *models.Company   `json:"company"`
	IsAuthenticated bool              `json:"is_authenticated"`
	Loading         bool              `json:"loading"`
}

// Role is the single role used for authorization, empty when unresolved.
func (s Snapshot) Role() models.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Subject projects the snapshot onto what the access gate evaluates.
func (s Snapshot) Subject() access.Subject {
	return access.Subject{
		Loading:       s.Loading,
		Authenticated: s.IsAuthenticated,
		Resolved:      s.User != nil,
		Role:          s.Role(),
	}
}

type Options struct {
	// ResolveTimeout bounds a single resolution pass.
	ResolveTimeout time.Duration
}

const defaultResolveTimeout = 10 * time.Second

// Store is constructed per client with New and driven by Init and Dispose.
// Only resolutions and the lifecycle operations mutate it.
type Store struct {
	client   backend.Client
	resolver Resolver
	log      *slog.Logger
	opts     Options

	mu      sync.Mutex
	snap    Snapshot
	gen     uint64
	cancel  context.CancelFunc
	settled chan struct{} // non-nil while a resolution is in flight
	sub     backend.Subscription
	started bool
	closed  bool
}

func New(client backend.Client, resolver Resolver, log *slog.Logger, opts Options) *Store {
	if log == nil {
		log = slog.Default()
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	return &Store{
		client:   client,
		resolver: resolver,
		log:      log,
		opts:     opts,
		snap:     Snapshot{Loading: true},
	}
}

// Init subscribes to auth-state changes and picks up an existing backend
// session. Calling it again is a no-op.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	gen := s.gen
	s.mu.Unlock()

	sub := s.client.OnAuthStateChange(s.onAuthEvent)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrDisposed
	}
	s.sub = sub
	s.mu.Unlock()

	p, err := s.client.CurrentSession(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "load current session", "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// An auth event arrived meanwhile and owns the state now.
		return nil
	}
	if err != nil || p == nil {
		s.settleLocked(Snapshot{})
		return nil
	}
	s.startLocked(p)
	return nil
}

// Dispose releases the subscription and discards in-flight resolutions.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.settleLocked(Snapshot{})
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Snapshot returns the latest state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Wait blocks until no resolution is in flight.
func (s *Store) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		ch := s.settled
		s.mu.Unlock()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Revalidate re-checks an authenticated session with the backend, which
// refreshes an expiring access token and re-resolves the identity behind it.
// A session the backend no longer honours is cleared. A backend failure
// signs the client out.
func (s *Store) Revalidate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	authenticated, gen := s.snap.IsAuthenticated, s.gen
	s.mu.Unlock()
	if !authenticated {
		return nil
	}

	p, err := s.client.CurrentSession(ctx)
	if err != nil {
		s.Logout(ctx)
		return fmt.Errorf("revalidate session: %w", err)
	}
	if p != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && !s.closed {
		s.settleLocked(Snapshot{})
	}
	return nil
}

// onAuthEvent runs synchronously inside the client's auth lock, so events are
// applied in emission order. It must not call back into client auth methods.
func (s *Store) onAuthEvent(ev backend.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch ev.Type {
	case backend.EventSignedIn, backend.EventTokenRefreshed:
		if ev.Principal == nil {
			s.settleLocked(Snapshot{})
			return
		}
		s.startLocked(ev.Principal)
	case backend.EventSignedOut:
		s.settleLocked(Snapshot{})
	default:
		s.log.Warn("unknown auth event", "event", string(ev.Type))
	}
}

// reload re-runs resolution for the current principal.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.snap.Principal == nil {
		return
	}
	s.startLocked(s.snap.Principal)
}

// clear drops local identity without touching the backend.
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(Snapshot{})
}

// startLocked supersedes any in-flight resolution with a new generation for p.
// A user already resolved for the same principal stays visible meanwhile.
func (s *Store) startLocked(p *models.Principal) {
	s.bumpLocked()

	next := Snapshot{Principal: p, IsAuthenticated: true}
	if s.snap.User != nil && s.snap.Principal != nil && s.snap.Principal.ID == p.ID {
		next.User, next.Company = s.snap.User, s.snap.Company
	} else {
		next.Loading = true
	}
	s.snap = next

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ResolveTimeout)
	s.cancel = cancel
	s.settled = make(chan struct{})
	go s.resolve(ctx, s.gen, p)
}

func (s *Store) resolve(ctx context.Context, gen uint64, p *models.Principal) {
	id, err := s.resolver.Resolve(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.closed {
		s.log.Debug("discarding stale resolution", "principal_id", p.ID, "generation", gen)
		return
	}
	if err != nil {
		s.log.Error("resolve identity", "principal_id", p.ID, "err", err)
		s.settleLocked(Snapshot{})
		return
	}
	s.settleLocked(Snapshot{
		Principal:       p,
		User:            id.User,
		Company:         id.Company,
		IsAuthenticated: true,
	})
}

// settleLocked ends the current generation with a final snapshot.
func (s *Store) settleLocked(snap Snapshot) {
	s.bumpLocked()
	s.snap = snap
}

// bumpLocked invalidates and cancels whatever resolution is in flight and
// wakes its waiters.
func (s *Store) bumpLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.settled != nil {
		close(s.settled)
		s.settled = nil
	}
}
