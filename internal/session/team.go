package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
)

// MemberInput is a teammate added by a tenant admin.
type MemberInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     models.Role
}

func (in MemberInput) validate() error {
	switch in.Role {
	case models.RoleAdmin, models.RoleMarketer, models.RoleSales:
	default:
		return fmt.Errorf("%w: role %q cannot be assigned", ErrInvalidMember, in.Role)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMember)
	}
	return nil
}

// Members lists the admin's tenant.
func (s *Store) Members(ctx context.Context) ([]models.Member, error) {
	admin, err := s.requireAdmin()
	if err != nil {
		return nil, err
	}
	return s.client.ListMembers(ctx, admin.CompanyID)
}

// AddMember creates principal, profile and role in order. If a step fails the
// completed ones are undone in reverse.
func (s *Store) AddMember(ctx context.Context, in MemberInput) (*models.Member, error) {
	admin, err := s.requireAdmin()
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var undo undoStack
	p, err := s.client.CreateUser(ctx, in.Email, in.Password, map[string]any{
		"name":          strings.TrimSpace(in.Name),
		"admin_created": true,
	})
	if err != nil {
		return nil, err
	}
	undo.push("delete principal", func(ctx context.Context) error { return s.client.DeleteUser(ctx, p.ID) })

	profile, err := s.client.CreateProfile(ctx, directory.ProfileInput{
		UserID:    p.ID,
		Name:      in.Name,
		Email:     p.Email,
		CompanyID: admin.CompanyID,
		Phone:     in.Phone,
	})
	if err != nil {
		undo.run(ctx, s.log)
		return nil, err
	}
	undo.push("delete profile", func(ctx context.Context) error { return s.client.DeleteProfile(ctx, p.ID) })

	if err := s.client.CreateRole(ctx, p.ID, in.Role); err != nil {
		undo.run(ctx, s.log)
		return nil, err
	}

	s.log.InfoContext(ctx, "team member added",
		"company_id", admin.CompanyID, "member_id", p.ID, "role", string(in.Role))
	return &models.Member{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Role:      in.Role,
		CreatedAt: profile.CreatedAt,
	}, nil
}

// RemoveMember deletes the member's roles and then the profile. The principal
// is kept and falls back to an unassigned identity.
func (s *Store) RemoveMember(ctx context.Context, memberID string) error {
	admin, err := s.requireAdmin()
	if err != nil {
		return err
	}
	if memberID == admin.ID {
		return fmt.Errorf("%w: admins cannot remove themselves", ErrForbidden)
	}
	members, err := s.client.ListMembers(ctx, admin.CompanyID)
	if err != nil {
		return err
	}
	found := false
	for _, m := range members {
		if m.ID == memberID {
			found = true
			break
		}
	}
	if !found {
		return ErrMemberNotFound
	}

	if err := s.client.DeleteRoles(ctx, memberID); err != nil {
		return err
	}
	if err := s.client.DeleteProfile(ctx, memberID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "team member removed", "company_id", admin.CompanyID, "member_id", memberID)
	return nil
}

func (s *Store) requireAdmin() (*models.User, error) {
	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return nil, backend.ErrNoSession
	}
	if snap.Role() != models.RoleAdmin || snap.User.CompanyID == "" {
		return nil, ErrForbidden
	}
	return snap.User, nil
}

type undoStep struct {
	name string
	fn   func(context.Context) error
}

type undoStack []undoStep

func (u *undoStack) push(name string, fn func(context.Context) error) {
	*u = append(*u, undoStep{name: name, fn: fn})
}

// run undoes in reverse order and keeps going past failures.
func (u undoStack) run(ctx context.Context, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i].fn(ctx); err != nil {
			log.ErrorContext(ctx, "compensation failed", "step", u[i].name, "err", err)
		}
	}
}
