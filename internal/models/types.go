// Package models holds the domain types shared by the backend, the session
// core and the HTTP layer.
package models

import (
	"errors"
	"strings"
	"time"
)

// Role is the permission class that decides which dashboard a user may open.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleMarketer   Role = "marketer"
	RoleSales      Role = "sales"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists the closed role set.
var Roles = []Role{RoleAdmin, RoleMarketer, RoleSales, RoleSuperAdmin}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMarketer, RoleSales, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole maps a stored or submitted role value onto the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "super-admin" {
		r = RoleSuperAdmin
	}
	return r, r.Valid()
}

// BusinessType is the category a company picks at signup.
type BusinessType string

const (
	BusinessRetail        BusinessType = "retail"
	BusinessServices      BusinessType = "services"
	BusinessTechnology    BusinessType = "technology"
	BusinessManufacturing BusinessType = "manufacturing"
	BusinessHealthcare    BusinessType = "healthcare"
	BusinessEducation     BusinessType = "education"
	BusinessOther         BusinessType = "other"
)

func (b BusinessType) Valid() bool {
	switch b {
	case BusinessRetail, BusinessServices, BusinessTechnology, BusinessManufacturing,
		BusinessHealthcare, BusinessEducation, BusinessOther:
		return true
	}
	return false
}

var (
	ErrNotFound      = errors.New("not found")
	ErrAmbiguousRole = errors.New("principal has more than one role")
)

// Principal is the identity issued by the auth backend. The application only
// reads it.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Profile is the application-level user record linked to a tenant.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CompanyID string    `json:"company_id"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Company is the tenant boundary. Every profile belongs to exactly one company.
type Company struct {
	ID           string       `json:"id"`
	CompanyName  string       `json:"company_name"`
	BusinessType BusinessType `json:"business_type"`
	Location     string       `json:"location"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	OwnerID      string       `json:"owner_id"`
	CreatedAt    time.Time    `json:"created_at"`
}

// User is the resolved identity the views work with: a profile plus the role
// used for authorization.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CompanyID string    `json:"company_id"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a row of the team listing of a company.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
