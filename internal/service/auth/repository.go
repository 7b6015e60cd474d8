// Package auth defines the repository contract for authentication.
package auth

import "context"

// AuthRepository is the interface for DB operations.
// Implemented by pg.Repository and sqlite.Repository.
type AuthRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
	LogLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
}
