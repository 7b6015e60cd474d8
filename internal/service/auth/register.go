package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

// SignUp creates a principal and signs it in.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*models.Principal, error) {
	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user)
}

// CreateUser creates a principal without opening a session for it. Used when an
// admin provisions team members.
func (s *AuthService) CreateUser(ctx context.Context, input SignUpInput) (*models.Principal, error) {
	user, err := s.createUser(ctx, input)
	if err != nil {
		return nil, err
	}
	return &models.Principal{ID: user.ID, Email: user.Email}, nil
}

func (s *AuthService) createUser(ctx context.Context, input SignUpInput) (*User, error) {
	email := normalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < 8 || !hasDigit(input.Password) || !hasLetter(input.Password) {
		return nil, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		Metadata:     input.Metadata,
		CreatedAt:    s.now(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) || isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
