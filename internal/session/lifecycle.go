package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
)

// SignupInput is the signup form: the new tenant plus its first admin.
type SignupInput struct {
	CompanyName  string
	BusinessType models.BusinessType
	Location     string
	CompanyEmail string
	CompanyPhone string
	AdminName    string
	AdminEmail   string
	Password     string
}

func (in SignupInput) provision() directory.ProvisionInput {
	return directory.ProvisionInput{
		Tenant: directory.TenantInput{
			CompanyName:  in.CompanyName,
			BusinessType: in.BusinessType,
			Location:     in.Location,
			Email:        in.CompanyEmail,
			Phone:        in.CompanyPhone,
		},
		Admin: directory.ProfileInput{
			Name:  in.AdminName,
			Email: in.AdminEmail,
		},
	}
}

// Login makes exactly one sign-in attempt and returns the home path of the
// resolved role. A rejected attempt leaves the snapshot unchanged.
func (s *Store) Login(ctx context.Context, email, password string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if _, err := s.client.SignIn(ctx, email, password); err != nil {
		return "", err
	}
	return s.landing(ctx)
}

// Signup creates the admin principal and then provisions tenant, profile and
// admin role in one backend transaction. When provisioning fails the
// principal remains, the local session is ended and ErrSignupIncomplete is
// returned; a later login resolves through the fallback user.
func (s *Store) Signup(ctx context.Context, in SignupInput) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	prov := in.provision()
	if err := prov.Validate(); err != nil {
		return "", err
	}

	p, err := s.client.SignUp(ctx, in.AdminEmail, in.Password, map[string]any{
		"name":         strings.TrimSpace(in.AdminName),
		"company_name": strings.TrimSpace(in.CompanyName),
	})
	if err != nil {
		return "", err
	}

	prov.Admin.UserID = p.ID
	prov.Tenant.OwnerID = p.ID
	if _, _, err := s.client.Provision(ctx, prov); err != nil {
		s.log.ErrorContext(ctx, "provision tenant", "principal_id", p.ID, "err", err)
		s.Logout(ctx)
		return "", fmt.Errorf("%w: %w", ErrSignupIncomplete, err)
	}

	s.reload()
	return s.landing(ctx)
}

// Logout never fails: a backend error is logged and local state is cleared
// regardless. It returns the login path.
func (s *Store) Logout(ctx context.Context) string {
	if err := s.client.SignOut(ctx); err != nil {
		s.log.WarnContext(ctx, "backend sign-out failed", "err", err)
	}
	s.clear()
	return access.LoginPath
}

func (s *Store) landing(ctx context.Context) (string, error) {
	if err := s.Wait(ctx); err != nil {
		return "", err
	}
	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return access.LoginPath, ErrResolution
	}
	return access.HomePath(snap.Role()), nil
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrDisposed
	case !s.started:
		return ErrNotInitialized
	}
	return nil
}
