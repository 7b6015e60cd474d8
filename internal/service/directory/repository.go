package directory

import (
	"context"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

// Repository is the storage contract for tenants, profiles and role rows.
// Implemented by pg.Repository and sqlite.Repository.
type Repository interface {
	// GetProfile returns the profile with its company. models.ErrNotFound when
	// the profile row does not exist; the company is nil when the profile points
	// at a missing tenant.
	GetProfile(ctx context.Context, userID string) (*models.Profile, *models.Company, error)
	// ListRoles returns the role rows of a user, oldest first.
	ListRoles(ctx context.Context, userID string) ([]models.Role, error)
	ListMembers(ctx context.Context, companyID string) ([]models.Member, error)

	CreateProfile(ctx context.Context, p *models.Profile) error
	CreateRole(ctx context.Context, userID string, role models.Role) error

	DeleteProfile(ctx context.Context, id string) error
	DeleteRoles(ctx context.Context, userID string) error

	// Provision writes company, profile and role in one transaction.
	Provision(ctx context.Context, c *models.Company, p *models.Profile, role models.Role) error
}
