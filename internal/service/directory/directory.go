package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

// Service validates directory writes and shapes reads for the session core.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetProfile returns the profile and company of a principal, or nil values when
// the profile has not been provisioned yet.
func (s *Service) GetProfile(ctx context.Context, principalID string) (*models.Profile, *models.Company, error) {
	p, c, err := s.repo.GetProfile(ctx, principalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get profile: %w", err)
	}
	return p, c, nil
}

// GetRoles returns the role rows of a principal, oldest first.
func (s *Service) GetRoles(ctx context.Context, principalID string) ([]models.Role, error) {
	roles, err := s.repo.ListRoles(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (s *Service) ListMembers(ctx context.Context, companyID string) ([]models.Member, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: company id is required", ErrInvalidProfile)
	}
	members, err := s.repo.ListMembers(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *Service) CreateProfile(ctx context.Context, in ProfileInput) (*models.Profile, error) {
	p, err := s.newProfile(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (s *Service) CreateRole(ctx context.Context, userID string, role models.Role) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRole)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.repo.CreateRole(ctx, userID, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// Provision creates a tenant, its admin profile and the admin role atomically.
func (s *Service) Provision(ctx context.Context, in ProvisionInput) (*models.Profile, *models.Company, error) {
	if in.Tenant.OwnerID == "" {
		in.Tenant.OwnerID = in.Admin.UserID
	}
	c, err := s.newCompany(in.Tenant)
	if err != nil {
		return nil, nil, err
	}
	in.Admin.CompanyID = c.ID
	p, err := s.newProfile(in.Admin)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Provision(ctx, c, p, models.RoleAdmin); err != nil {
		return nil, nil, fmt.Errorf("provision tenant: %w", err)
	}
	return p, c, nil
}

func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func (s *Service) DeleteRoles(ctx context.Context, userID string) error {
	if err := s.repo.DeleteRoles(ctx, userID); err != nil {
		return fmt.Errorf("delete roles: %w", err)
	}
	return nil
}

// Validate checks the signup fields before any principal exists.
func (in ProvisionInput) Validate() error {
	if err := validateTenant(in.Tenant); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(in.Admin.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case !validEmail(in.Admin.Email):
		return fmt.Errorf("%w: email is invalid", ErrInvalidProfile)
	}
	return nil
}

func validateTenant(in TenantInput) error {
	switch {
	case strings.TrimSpace(in.CompanyName) == "":
		return fmt.Errorf("%w: company name is required", ErrInvalidTenant)
	case !in.BusinessType.Valid():
		return fmt.Errorf("%w: unknown business type %q", ErrInvalidTenant, in.BusinessType)
	case strings.TrimSpace(in.Location) == "":
		return fmt.Errorf("%w: location is required", ErrInvalidTenant)
	case !validEmail(in.Email):
		return fmt.Errorf("%w: company email is invalid", ErrInvalidTenant)
	}
	return nil
}

func (s *Service) newCompany(in TenantInput) (*models.Company, error) {
	if err := validateTenant(in); err != nil {
		return nil, err
	}
	return &models.Company{
		ID:           uuid.NewString(),
		CompanyName:  strings.TrimSpace(in.CompanyName),
		BusinessType: in.BusinessType,
		Location:     strings.TrimSpace(in.Location),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		OwnerID:      in.OwnerID,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func (s *Service) newProfile(in ProfileInput) (*models.Profile, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case in.UserID == "":
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidProfile)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case !validEmail(in.Email):
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidProfile)
	case in.CompanyID == "":
		return nil, fmt.Errorf("%w: company id is required", ErrInvalidProfile)
	}
	return &models.Profile{
		ID:        in.UserID,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		CompanyID: in.CompanyID,
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: s.now().UTC(),
	}, nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}
