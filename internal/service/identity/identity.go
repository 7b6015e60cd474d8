// Package identity turns an authenticated principal into the user, company and
// role the rest of the application works with.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

var ErrNoPrincipal = errors.New("principal id is required")

// Directory is the read side of the backend the resolver needs.
type Directory interface {
	GetProfile(ctx context.Context, principalID string) (*models.Profile, *models.Company, error)
	GetRoles(ctx context.Context, principalID string) ([]models.Role, error)
}

// RolePolicy decides which role row is used when a principal has several.
type RolePolicy string

const (
	// PolicyFirstWins uses the oldest role row.
	PolicyFirstWins RolePolicy = "first"
	// PolicyUnique fails resolution when rows name more than one role.
	PolicyUnique RolePolicy = "unique"
)

func ParseRolePolicy(s string) (RolePolicy, error) {
	switch p := RolePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFirstWins, nil
	case PolicyFirstWins, PolicyUnique:
		return p, nil
	default:
		return "", fmt.Errorf("unknown role policy %q", s)
	}
}

// Identity is the outcome of a resolution pass. Company is nil while the
// principal has no provisioned profile.
type Identity struct {
	User    *models.User
	Company *models.Company
	Role    models.Role
}

// Fallback reports whether the user was synthesized from the principal.
func (i *Identity) Fallback() bool {
	return i.User != nil && i.User.CompanyID == ""
}

type Resolver struct {
	dir    Directory
	policy RolePolicy
}

func NewResolver(dir Directory, policy RolePolicy) *Resolver {
	if policy == "" {
		policy = PolicyFirstWins
	}
	return &Resolver{dir: dir, policy: policy}
}

// Resolve fetches profile and roles concurrently and maps them to an Identity.
// A missing profile yields a fallback user built from the principal.
func (r *Resolver) Resolve(ctx context.Context, p *models.Principal) (*Identity, error) {
	if p == nil || p.ID == "" {
		return nil, ErrNoPrincipal
	}

	var (
		profile *models.Profile
		company *models.Company
		roles   []models.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, company, err = r.dir.GetProfile(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("fetch profile: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		roles, err = r.dir.GetRoles(gctx, p.ID)
		if err != nil {
			return fmt.Errorf("fetch roles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	role, err := r.pickRole(roles)
	if err != nil {
		return nil, err
	}

	if profile == nil {
		return &Identity{User: FallbackUser(p, role), Role: role}, nil
	}
	return &Identity{
		User: &models.User{
			ID:        profile.ID,
			Name:      profile.Name,
			Email:     profile.Email,
			CompanyID: profile.CompanyID,
			Phone:     profile.Phone,
			Role:      role,
			CreatedAt: profile.CreatedAt,
		},
		Company: company,
		Role:    role,
	}, nil
}

func (r *Resolver) pickRole(rows []models.Role) (models.Role, error) {
	var picked models.Role
	for _, role := range rows {
		if !role.Valid() {
			continue
		}
		if picked == "" {
			picked = role
			if r.policy == PolicyFirstWins {
				break
			}
			continue
		}
		if role != picked {
			return "", models.ErrAmbiguousRole
		}
	}
	return picked, nil
}

// FallbackUser bridges the window between principal creation and profile
// provisioning.
func FallbackUser(p *models.Principal, role models.Role) *models.User {
	return &models.User{
		ID:    p.ID,
		Email: p.Email,
		Name:  NameFromEmail(p.Email),
		Role:  role,
	}
}

// NameFromEmail derives a display name from the local part of an address:
// "jane.doe@example.com" becomes "Jane Doe".
func NameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(words) == 0 {
		return email
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
