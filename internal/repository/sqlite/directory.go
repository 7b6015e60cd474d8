package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

func (r *Repository) GetProfile(ctx context.Context, userID string) (*models.Profile, *models.Company, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.email, p.company_id, p.phone, p.created_at,
		       c.id, c.company_name, c.business_type, c.location, c.email, c.phone, c.owner_id, c.created_at
		FROM profiles p
		LEFT JOIN companies c ON c.id = p.company_id
		WHERE p.id = ?`, userID)

	var (
		p                               models.Profile
		pPhone                          sql.NullString
		cID, cName, cType, cLoc, cEmail sql.NullString
		cPhone, cOwner                  sql.NullString
		cCreated                        sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CompanyID, &pPhone, &p.CreatedAt,
		&cID, &cName, &cType, &cLoc, &cEmail, &cPhone, &cOwner, &cCreated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, err
	}
	p.Phone = pPhone.String
	if !cID.Valid {
		return &p, nil, nil
	}
	return &p, &models.Company{
		ID:           cID.String,
		CompanyName:  cName.String,
		BusinessType: models.BusinessType(cType.String),
		Location:     cLoc.String,
		Email:        cEmail.String,
		Phone:        cPhone.String,
		OwnerID:      cOwner.String,
		CreatedAt:    cCreated.Time,
	}, nil
}

func (r *Repository) ListRoles(ctx context.Context, userID string) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var roles []models.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, models.Role(role))
	}
	return roles, rows.Err()
}

func (r *Repository) ListMembers(ctx context.Context, companyID string) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.email, p.created_at,
		       (SELECT ur.role FROM user_roles ur WHERE ur.user_id = p.id ORDER BY ur.created_at, ur.id LIMIT 1)
		FROM profiles p
		WHERE p.company_id = ?
		ORDER BY p.created_at, p.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []models.Member
	for rows.Next() {
		var (
			m    models.Member
			role sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.CreatedAt, &role); err != nil {
			return nil, err
		}
		m.Role = models.Role(role.String)
		members = append(members, m)
	}
	return members, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCompany(ctx context.Context, db execer, c *models.Company) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO companies (id, company_name, business_type, location, email, phone, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyName, string(c.BusinessType), c.Location, c.Email,
		nullString(c.Phone), nullString(c.OwnerID), c.CreatedAt.UTC())
	return err
}

func insertProfile(ctx context.Context, db execer, p *models.Profile) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, email, company_id, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.CompanyID, nullString(p.Phone), p.CreatedAt.UTC())
	return err
}

func insertRole(ctx context.Context, db execer, userID string, role models.Role) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, userID, string(role))
	return err
}

func (r *Repository) CreateProfile(ctx context.Context, p *models.Profile) error {
	return insertProfile(ctx, r.db, p)
}

func (r *Repository) CreateRole(ctx context.Context, userID string, role models.Role) error {
	return insertRole(ctx, r.db, userID, role)
}

func (r *Repository) DeleteProfile(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	return err
}

func (r *Repository) DeleteRoles(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID)
	return err
}

func (r *Repository) Provision(ctx context.Context, c *models.Company, p *models.Profile, role models.Role) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCompany(ctx, tx, c); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	if err := insertProfile(ctx, tx, p); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if err := insertRole(ctx, tx, p.ID, role); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
