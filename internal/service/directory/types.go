// Package directory manages tenants (companies), profiles and role rows.
package directory

import (
	"errors"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

var (
	ErrInvalidTenant  = errors.New("invalid tenant")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidRole    = errors.New("invalid role")
)

// TenantInput carries the company fields of the signup form.
type TenantInput struct {
	CompanyName  string
	BusinessType models.BusinessType
	Location     string
	Email        string
	Phone        string
	OwnerID      string
}

// ProfileInput links a principal to a tenant.
type ProfileInput struct {
	UserID    string
	Name      string
	Email     string
	CompanyID string
	Phone     string
}

// ProvisionInput is a new tenant plus its first admin.
type ProvisionInput struct {
	Tenant TenantInput
	Admin  ProfileInput
}
