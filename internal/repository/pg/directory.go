// internal/repository/pg/directory.go
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.Profile, *models.Company, error) {
	row := r.db.QueryRow(ctx, `
		SELECT p.id, p.name, p.email, p.company_id, COALESCE(p.phone, ''), p.created_at,
		       c.id, c.company_name, c.business_type, c.location, c.email, c.phone, c.owner_id, c.created_at
		FROM profiles p
		LEFT JOIN companies c ON c.id = p.company_id
		WHERE p.id = $1`, userID)

	var (
		p                               models.Profile
		cID, cName, cType, cLoc, cEmail *string
		cPhone, cOwner                  *string
		cCreated                        *time.Time
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CompanyID, &p.Phone, &p.CreatedAt,
		&cID, &cName, &cType, &cLoc, &cEmail, &cPhone, &cOwner, &cCreated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, err
	}
	if cID == nil {
		return &p, nil, nil
	}
	c := &models.Company{
		ID:           *cID,
		CompanyName:  deref(cName),
		BusinessType: models.BusinessType(deref(cType)),
		Location:     deref(cLoc),
		Email:        deref(cEmail),
		Phone:        deref(cPhone),
		OwnerID:      deref(cOwner),
	}
	if cCreated != nil {
		c.CreatedAt = *cCreated
	}
	return &p, c, nil
}

func (r *Repository) ListRoles(ctx context.Context, userID string) ([]models.Role, error) {
	rows, err := r.db.Query(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]models.Role, 0, len(roles))
	for _, role := range roles {
		out = append(out, models.Role(role))
	}
	return out, nil
}

func (r *Repository) ListMembers(ctx context.Context, companyID string) ([]models.Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.email, p.created_at, COALESCE(ur.role, '')
		FROM profiles p
		LEFT JOIN LATERAL (
			SELECT role FROM user_roles WHERE user_id = p.id ORDER BY created_at, id LIMIT 1
		) ur ON TRUE
		WHERE p.company_id = $1
		ORDER BY p.created_at, p.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var (
			m    models.Member
			role string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt, &role); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertCompany(ctx context.Context, db execer, c *models.Company) error {
	_, err := db.Exec(ctx, `
		INSERT INTO companies (id, company_name, business_type, location, email, phone, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`,
		c.ID, c.CompanyName, string(c.BusinessType), c.Location, c.Email, c.Phone, c.OwnerID, c.CreatedAt)
	return err
}

func insertProfile(ctx context.Context, db execer, p *models.Profile) error {
	_, err := db.Exec(ctx, `
		INSERT INTO profiles (id, name, email, company_id, phone, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		p.ID, p.Name, p.Email, p.CompanyID, p.Phone, p.CreatedAt)
	return err
}

func insertRole(ctx context.Context, db execer, userID string, role models.Role) error {
	_, err := db.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, userID, string(role))
	return err
}

func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile) error {
	return insertProfile(ctx, r.db, p)
}

func (r *Repository) CreateRole(ctx context.Context, userID string, role models.Role) error {
	return insertRole(ctx, r.db, userID, role)
}

func (r *Repository) DeleteProfile(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM profiles WHERE id = $1", id)
	return err
}

func (r *Repository) DeleteRoles(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID)
	return err
}

func (r *Repository) Provision(ctx context.Context, c *models.Company, p *models.Profile, role models.Role) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := insertCompany(ctx, tx, c); err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		if err := insertProfile(ctx, tx, p); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if err := insertRole(ctx, tx, p.ID, role); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
		return nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
