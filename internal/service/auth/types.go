// Package auth defines domain types for authentication.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a principal record in the auth layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Session is the server-side record a refresh token is bound to. Deleting it
// revokes the token.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginAttempt is for audit logging.
type LoginAttempt struct {
	Email     string
	IP        string
	UserAgent string
	Success   bool
	Reason    string
}

// Tokens holds JWT tokens.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// SignUpInput is the input for principal creation.
type SignUpInput struct {
	Email    string
	Password string
	Metadata map[string]any
}

// LoginInput is the input for login.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims are the JWT claims issued for both access and refresh tokens.
// Refresh tokens carry the auth session id in the jti.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"typ"`
}
