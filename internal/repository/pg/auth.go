// internal/repository/pg/auth.go
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
)

// Repository implements the auth, directory, campaign and task repositories on
// PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

var (
	_ auth.AuthRepository  = (*Repository)(nil)
	_ directory.Repository = (*Repository)(nil)
	_ campaign.Repository  = (*Repository)(nil)
	_ task.Repository      = (*Repository)(nil)
)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *auth.User) error {
	var meta map[string]any
	if len(u.Metadata) > 0 {
		meta = u.Metadata
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, active, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.PasswordHash, u.Active, meta, u.CreatedAt,
	)
	return err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, active, metadata, created_at FROM users `+where, arg)

	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &u.Metadata, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}

func (r *Repository) CreateSession(ctx context.Context, s *auth.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		s.ID, s.UserID, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM auth_sessions
		 WHERE id = $1 AND expires_at > NOW()`,
		sessionID)

	var s auth.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrSessionExpired
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM auth_sessions WHERE id = $1", sessionID)
	return err
}

func (r *Repository) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM auth_sessions WHERE user_id = $1", userID)
	return err
}

func (r *Repository) LogLoginAttempt(ctx context.Context, a *auth.LoginAttempt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_attempts (email, ip_address, user_agent, success, failure_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		a.Email, a.IP, a.UserAgent, a.Success, a.Reason,
	)
	return err
}
