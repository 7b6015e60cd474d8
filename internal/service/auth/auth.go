// Package auth provides the authentication backend: principal creation,
// password sign-in, token issuance, refresh and revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

const defaultBcryptCost = 12

// AuthService is the main authentication service.
type AuthService struct {
	repo       AuthRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
	cost       int
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithTTL overrides the access and refresh token lifetimes.
func WithTTL(access, refresh time.Duration) Option {
	return func(s *AuthService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithLogger sets the logger used for audit failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) { s.log = l }
}

// WithPasswordCost sets the bcrypt cost. Out of range values are ignored.
func WithPasswordCost(cost int) Option {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
// secret must be at least 32 bytes for HS256.
func NewAuthService(repo AuthRepository, secret []byte, opts ...Option) *AuthService {
	if len(secret) < 32 {
		panic("jwt secret must be at least 32 bytes")
	}
	s := &AuthService{
		repo:       repo,
		secret:     secret,
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		now:        time.Now,
		log:        slog.Default(),
		cost:       defaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn authenticates a principal by email and password and opens an auth session.
func (s *AuthService) SignIn(ctx context.Context, input LoginInput) (*models.Principal, error) {
	email := normalizeEmail(input.Email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logAttempt(ctx, input, false, "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Active {
		s.logAttempt(ctx, input, false, "user_inactive")
		return nil, ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.logAttempt(ctx, input, false, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	s.logAttempt(ctx, input, true, "success")

	return s.openSession(ctx, user)
}

// Refresh rotates a refresh token. The old auth session is deleted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.Principal, error) {
	claims, err := s.parse(refreshToken, tokenRefresh)
	if err != nil {
		return nil, err
	}

	sess, err := s.repo.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, ErrSessionExpired) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.now().After(sess.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, sess.ID)
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	if err := s.repo.DeleteSession(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return s.openSession(ctx, user)
}

// SignOut revokes the auth session behind a refresh token. Expired tokens are
// accepted; revoking an already revoked session is not an error.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(refreshToken, claims, s.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil || claims.Type != tokenRefresh || claims.ID == "" {
		return ErrInvalidToken
	}
	if err := s.repo.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Now reads the service clock that stamps and checks token expiry.
func (s *AuthService) Now() time.Time {
	return s.now()
}

// Verify validates an access token and returns the principal it was issued to.
func (s *AuthService) Verify(accessToken string) (*models.Principal, error) {
	claims, err := s.parse(accessToken, tokenAccess)
	if err != nil {
		return nil, err
	}
	p := &models.Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		AccessToken: accessToken,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// DeleteUser removes a principal and all of its auth sessions.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.repo.DeleteSessionsByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// === Private helpers ===

func (s *AuthService) openSession(ctx context.Context, user *User) (*models.Principal, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	tokens, err := s.createTokens(user, sess.ID, now)
	if err != nil {
		return nil, fmt.Errorf("create tokens: %w", err)
	}
	return &models.Principal{
		ID:           user.ID,
		Email:        user.Email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}, nil
}

func (s *AuthService) createTokens(user *User, sessionID string, now time.Time) (*Tokens, error) {
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: user.Email,
		Type:  tokenAccess,
	})
	accessTokenStr, err := accessToken.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: user.Email,
		Type:  tokenRefresh,
	})
	refreshTokenStr, err := refreshToken.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &Tokens{
		AccessToken:  accessTokenStr,
		RefreshToken: refreshTokenStr,
		ExpiresAt:    now.Add(s.accessTTL),
		UserID:       user.ID,
	}, nil
}

func (s *AuthService) parse(tokenStr, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, s.keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.secret, nil
}

func (s *AuthService) logAttempt(ctx context.Context, input LoginInput, success bool, reason string) {
	err := s.repo.LogLoginAttempt(ctx, &LoginAttempt{
		Email:     normalizeEmail(input.Email),
		IP:        input.IPAddress,
		UserAgent: input.UserAgent,
		Success:   success,
		Reason:    reason,
	})
	if err != nil {
		s.log.WarnContext(ctx, "login attempt not recorded", "reason", reason, "err", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// isUniqueViolation detects PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	type PGError interface{ SQLState() string }
	var pgErr PGError
	if ok := errors.As(err, &pgErr); ok {
		return pgErr.SQLState() == "23505"
	}
	return false
}
