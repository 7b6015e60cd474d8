// Package auth defines authentication errors.
package auth

import "errors"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidPassword    = errors.New("password does not meet policy")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("auth session expired")
)
