package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user ON auth_sessions(user_id);

CREATE TABLE IF NOT EXISTS login_attempts (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	success BOOLEAN NOT NULL,
	failure_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	business_type TEXT NOT NULL,
	location TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	owner_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	company_id TEXT NOT NULL REFERENCES companies(id),
	phone TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_company ON profiles(company_id);

CREATE TABLE IF NOT EXISTS user_roles (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('admin', 'marketer', 'sales', 'super_admin')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_roles_user ON user_roles(user_id);

CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('email', 'sms', 'social')),
	status TEXT NOT NULL CHECK (status IN ('draft', 'scheduled', 'running', 'completed')),
	subject TEXT,
	content TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ,
	target_audience TEXT[] NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaigns_company ON campaigns(company_id, created_at DESC);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed', 'declined')),
	priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	assigned_to TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	assigned_by TEXT NOT NULL,
	due_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_company ON tasks(company_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assigned_to);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
