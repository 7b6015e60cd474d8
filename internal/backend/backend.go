// Package backend is the client-side view of the backend: authentication with
// auth-state notifications plus the tenant/profile/role tables. A Client is
// owned by exactly one browser session.
package backend

import (
	"context"
	"errors"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
)

var ErrNoSession = errors.New("no active session")

// Event is an auth-state transition.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to OnAuthStateChange listeners. Principal is nil for
// EventSignedOut.
type AuthEvent struct {
	Type      Event
	Principal *models.Principal
}

// Subscription is released with Unsubscribe. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Client is the backend call surface the session core consumes.
//
// Listeners registered with OnAuthStateChange are called synchronously, in
// emission order, while the client holds its auth lock; they must not call
// back into the auth methods of the same client.
type Client interface {
	SignIn(ctx context.Context, email, password string) (*models.Principal, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*models.Principal, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*models.Principal, error)
	OnAuthStateChange(fn func(AuthEvent)) Subscription

	GetProfile(ctx context.Context, principalID string) (*models.Profile, *models.Company, error)
	GetRoles(ctx context.Context, principalID string) ([]models.Role, error)
	ListMembers(ctx context.Context, companyID string) ([]models.Member, error)

	Provision(ctx context.Context, in directory.ProvisionInput) (*models.Profile, *models.Company, error)
	CreateProfile(ctx context.Context, in directory.ProfileInput) (*models.Profile, error)
	CreateRole(ctx context.Context, principalID string, role models.Role) error
	CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*models.Principal, error)

	DeleteProfile(ctx context.Context, id string) error
	DeleteRoles(ctx context.Context, principalID string) error
	DeleteUser(ctx context.Context, id string) error
}

type clientInfoKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClientInfo attaches the caller's address and user agent, recorded in
// the login audit.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{ip: ip, userAgent: userAgent})
}

func clientInfoFrom(ctx context.Context) clientInfo {
	ci, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return ci
}
