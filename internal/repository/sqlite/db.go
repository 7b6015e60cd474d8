// Package sqlite implements the auth, directory, campaign and task
// repositories on SQLite, used by lite mode and by tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	metadata TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user ON auth_sessions(user_id);

CREATE TABLE IF NOT EXISTS login_attempts (
	email TEXT NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	success INTEGER NOT NULL,
	failure_reason TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	business_type TEXT NOT NULL,
	location TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	owner_id TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	company_id TEXT NOT NULL,
	phone TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_company ON profiles(company_id);

CREATE TABLE IF NOT EXISTS user_roles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_user_roles_user ON user_roles(user_id);

CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	subject TEXT,
	content TEXT NOT NULL,
	scheduled_at DATETIME,
	target_audience TEXT NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaigns_company ON campaigns(company_id, created_at);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	priority TEXT NOT NULL DEFAULT 'medium',
	assigned_to TEXT NOT NULL,
	assigned_by TEXT NOT NULL,
	due_date DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_company ON tasks(company_id, created_at);
`

// Repository implements every service repository.
type Repository struct {
	db *sql.DB
}

var (
	_ auth.AuthRepository  = (*Repository)(nil)
	_ directory.Repository = (*Repository)(nil)
	_ campaign.Repository  = (*Repository)(nil)
	_ task.Repository      = (*Repository)(nil)
)

// Open opens (or creates) a SQLite database at dsn and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: an in-memory database exists per connection
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
