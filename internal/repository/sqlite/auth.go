package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
)

func (r *Repository) CreateUser(ctx context.Context, u *auth.User) error {
	var meta []byte
	if len(u.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(u.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, active, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Active, nullString(string(meta)), u.CreatedAt.UTC(),
	)
	if err != nil && isUniqueViolation(err) {
		return auth.ErrUserExists
	}
	return err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE email = ?`, email)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE id = ?`, id)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, active, metadata, created_at FROM users `+where, arg)

	var (
		u    auth.User
		meta sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &meta, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &u.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &u, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *Repository) CreateSession(ctx context.Context, s *auth.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.ExpiresAt.UTC(), s.CreatedAt.UTC(),
	)
	return err
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (*auth.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM auth_sessions WHERE id = ?`, sessionID)

	var s auth.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrSessionExpired
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID)
	return err
}

func (r *Repository) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	return err
}

func (r *Repository) LogLoginAttempt(ctx context.Context, a *auth.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_attempts (email, ip_address, user_agent, success, failure_reason)
		 VALUES (?, ?, ?, ?, ?)`,
		a.Email, a.IP, a.UserAgent, a.Success, a.Reason,
	)
	return err
}
