package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
)

// refreshSkew renews access tokens slightly before they expire.
const refreshSkew = 30 * time.Second

// Local is a Client bound in-process to the auth and directory services.
type Local struct {
	auth *auth.AuthService
	dir  *directory.Service
	log  *slog.Logger

	// opMu serializes auth-state transitions and their notifications.
	opMu    sync.Mutex
	mu      sync.RWMutex
	current *models.Principal

	subMu  sync.Mutex
	subs   map[int]func(AuthEvent)
	nextID int
}

var _ Client = (*Local)(nil)

func NewLocal(authSvc *auth.AuthService, dir *directory.Service, log *slog.Logger) *Local {
	if log == nil {
		log = slog.Default()
	}
	return &Local{
		auth: authSvc,
		dir:  dir,
		log:  log,
		subs: make(map[int]func(AuthEvent)),
	}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*models.Principal, error) {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	ci := clientInfoFrom(ctx)
	p, err := l.auth.SignIn(ctx, auth.LoginInput{
		Email:     email,
		Password:  password,
		IPAddress: ci.ip,
		UserAgent: ci.userAgent,
	})
	if err != nil {
		return nil, err
	}
	l.replaceCurrent(ctx, p)
	l.emit(AuthEvent{Type: EventSignedIn, Principal: clone(p)})
	return clone(p), nil
}

func (l *Local) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*models.Principal, error) {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	p, err := l.auth.SignUp(ctx, auth.SignUpInput{Email: email, Password: password, Metadata: metadata})
	if err != nil {
		return nil, err
	}
	l.replaceCurrent(ctx, p)
	l.emit(AuthEvent{Type: EventSignedIn, Principal: clone(p)})
	return clone(p), nil
}

// SignOut revokes the backend session. The local session is cleared and
// EventSignedOut emitted even when revocation fails.
func (l *Local) SignOut(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	cur := l.principal()
	if cur == nil {
		return nil
	}
	err := l.auth.SignOut(ctx, cur.RefreshToken)
	l.setCurrent(nil)
	l.emit(AuthEvent{Type: EventSignedOut})
	return err
}

// CurrentSession returns the signed-in principal, refreshing an expiring or
// unverifiable access token first. A failed refresh ends the session.
func (l *Local) CurrentSession(ctx context.Context) (*models.Principal, error) {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	cur := l.principal()
	if cur == nil {
		return nil, nil
	}
	if l.auth.Now().Add(refreshSkew).Before(cur.ExpiresAt) {
		if _, err := l.auth.Verify(cur.AccessToken); err == nil {
			return clone(cur), nil
		}
	}

	p, err := l.auth.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserInactive) {
			l.log.InfoContext(ctx, "session refresh rejected", "principal_id", cur.ID, "err", err)
			l.setCurrent(nil)
			l.emit(AuthEvent{Type: EventSignedOut})
			return nil, nil
		}
		return nil, err
	}
	l.setCurrent(p)
	l.emit(AuthEvent{Type: EventTokenRefreshed, Principal: clone(p)})
	return clone(p), nil
}

func (l *Local) OnAuthStateChange(fn func(AuthEvent)) Subscription {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	return &subscription{unsubscribe: func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}}
}

// Subscribers reports the number of active listeners.
func (l *Local) Subscribers() int {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	return len(l.subs)
}

func (l *Local) GetProfile(ctx context.Context, principalID string) (*models.Profile, *models.Company, error) {
	if err := l.requireSession(); err != nil {
		return nil, nil, err
	}
	return l.dir.GetProfile(ctx, principalID)
}

func (l *Local) GetRoles(ctx context.Context, principalID string) ([]models.Role, error) {
	if err := l.requireSession(); err != nil {
		return nil, err
	}
	return l.dir.GetRoles(ctx, principalID)
}

func (l *Local) ListMembers(ctx context.Context, companyID string) ([]models.Member, error) {
	if err := l.requireSession(); err != nil {
		return nil, err
	}
	return l.dir.ListMembers(ctx, companyID)
}

func (l *Local) Provision(ctx context.Context, in directory.ProvisionInput) (*models.Profile, *models.Company, error) {
	if err := l.requireSession(); err != nil {
		return nil, nil, err
	}
	return l.dir.Provision(ctx, in)
}

func (l *Local) CreateProfile(ctx context.Context, in directory.ProfileInput) (*models.Profile, error) {
	if err := l.requireSession(); err != nil {
		return nil, err
	}
	return l.dir.CreateProfile(ctx, in)
}

func (l *Local) CreateRole(ctx context.Context, principalID string, role models.Role) error {
	if err := l.requireSession(); err != nil {
		return err
	}
	return l.dir.CreateRole(ctx, principalID, role)
}

// CreateUser creates another principal without touching this client's session.
func (l *Local) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*models.Principal, error) {
	if err := l.requireSession(); err != nil {
		return nil, err
	}
	return l.auth.CreateUser(ctx, auth.SignUpInput{Email: email, Password: password, Metadata: metadata})
}

func (l *Local) DeleteProfile(ctx context.Context, id string) error {
	if err := l.requireSession(); err != nil {
		return err
	}
	return l.dir.DeleteProfile(ctx, id)
}

func (l *Local) DeleteRoles(ctx context.Context, principalID string) error {
	if err := l.requireSession(); err != nil {
		return err
	}
	return l.dir.DeleteRoles(ctx, principalID)
}

func (l *Local) DeleteUser(ctx context.Context, id string) error {
	if err := l.requireSession(); err != nil {
		return err
	}
	return l.auth.DeleteUser(ctx, id)
}

func (l *Local) principal() *models.Principal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *Local) setCurrent(p *models.Principal) {
	l.mu.Lock()
	l.current = p
	l.mu.Unlock()
}

// replaceCurrent installs p and revokes the backend session it supersedes.
func (l *Local) replaceCurrent(ctx context.Context, p *models.Principal) {
	prev := l.principal()
	l.setCurrent(p)
	if prev == nil || prev.RefreshToken == p.RefreshToken {
		return
	}
	if err := l.auth.SignOut(ctx, prev.RefreshToken); err != nil {
		l.log.WarnContext(ctx, "revoke superseded session", "principal_id", prev.ID, "err", err)
	}
}

// requireSession admits data calls only under a verified access token.
func (l *Local) requireSession() error {
	cur := l.principal()
	if cur == nil {
		return ErrNoSession
	}
	if _, err := l.auth.Verify(cur.AccessToken); err != nil {
		return fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	return nil
}

// emit is called with opMu held, so listeners observe transitions in order.
func (l *Local) emit(ev AuthEvent) {
	l.subMu.Lock()
	ids := make([]int, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(AuthEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.subs[id])
	}
	l.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

func clone(p *models.Principal) *models.Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
