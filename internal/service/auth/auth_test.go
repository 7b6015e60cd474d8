package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/testsupport"
)

func TestSignUpAndSignIn(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()

	p, err := env.Auth.SignUp(ctx, auth.SignUpInput{
		Email:    "  Ana@Acme.Test ",
		Password: testsupport.Password,
		Metadata: map[string]any{"name": "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.test", p.Email)
	assert.NotEmpty(t, p.AccessToken)
	assert.NotEmpty(t, p.RefreshToken)

	u, err := env.Repo.GetUserByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Metadata["name"])
	assert.NotEqual(t, testsupport.Password, u.PasswordHash)

	signedIn, err := env.Auth.SignIn(ctx, auth.LoginInput{Email: "ANA@acme.test", Password: testsupport.Password})
	require.NoError(t, err)
	assert.Equal(t, p.ID, signedIn.ID)

	verified, err := env.Auth.Verify(signedIn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, verified.ID)
	assert.Equal(t, "ana@acme.test", verified.Email)
}

func TestSignUp_Rejects(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()
	env.SeedPrincipal(t, "taken@acme.test")

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", testsupport.Password, auth.ErrInvalidEmail},
		{"display name", "Ana <ana@acme.test>", testsupport.Password, auth.ErrInvalidEmail},
		{"short password", "a@acme.test", "a1b2", auth.ErrInvalidPassword},
		{"no digit", "a@acme.test", "onlyletters", auth.ErrInvalidPassword},
		{"no letter", "a@acme.test", "1234567890", auth.ErrInvalidPassword},
		{"duplicate", "Taken@acme.test", testsupport.Password, auth.ErrUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Auth.SignUp(ctx, auth.SignUpInput{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignIn_Failures(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()
	env.SeedPrincipal(t, "ana@acme.test")

	_, err := env.Auth.SignIn(ctx, auth.LoginInput{Email: "ana@acme.test", Password: "wrong-pass-1"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = env.Auth.SignIn(ctx, auth.LoginInput{Email: "nobody@acme.test", Password: testsupport.Password})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = env.DB.ExecContext(ctx, `UPDATE users SET active = 0 WHERE email = ?`, "ana@acme.test")
	require.NoError(t, err)
	_, err = env.Auth.SignIn(ctx, auth.LoginInput{Email: "ana@acme.test", Password: testsupport.Password})
	assert.ErrorIs(t, err, auth.ErrUserInactive)
}

func TestSignIn_RecordsAttempts(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()
	env.SeedPrincipal(t, "ana@acme.test")

	_, err := env.Auth.SignIn(ctx, auth.LoginInput{Email: "ana@acme.test", Password: "wrong-pass-1", IPAddress: "10.0.0.1"})
	require.Error(t, err)
	_, err = env.Auth.SignIn(ctx, auth.LoginInput{Email: "ana@acme.test", Password: testsupport.Password, IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	rows, err := env.DB.QueryContext(ctx,
		`SELECT success, failure_reason FROM login_attempts WHERE ip_address = ? ORDER BY rowid`, "10.0.0.1")
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var (
			ok     bool
			reason string
		)
		require.NoError(t, rows.Scan(&ok, &reason))
		got = append(got, reason)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"invalid_password", "success"}, got)
}

func TestRefreshRotatesSession(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()

	p, err := env.Auth.SignUp(ctx, auth.SignUpInput{Email: "ana@acme.test", Password: testsupport.Password})
	require.NoError(t, err)

	next, err := env.Auth.Refresh(ctx, p.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, next.ID)
	assert.NotEqual(t, p.RefreshToken, next.RefreshToken)

	_, err = env.Auth.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = env.Auth.Refresh(ctx, next.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "access tokens cannot refresh")
}

func TestRefreshAfterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env := testsupport.New(t,
		auth.WithClock(func() time.Time { return now }),
		auth.WithTTL(time.Minute, time.Hour),
	)
	ctx := context.Background()

	p, err := env.Auth.SignUp(ctx, auth.SignUpInput{Email: "ana@acme.test", Password: testsupport.Password})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = env.Auth.Verify(p.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = env.Auth.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestSignOut(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()

	p, err := env.Auth.SignUp(ctx, auth.SignUpInput{Email: "ana@acme.test", Password: testsupport.Password})
	require.NoError(t, err)

	require.NoError(t, env.Auth.SignOut(ctx, p.RefreshToken))
	require.NoError(t, env.Auth.SignOut(ctx, p.RefreshToken), "revoking twice is fine")

	_, err = env.Auth.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	assert.ErrorIs(t, env.Auth.SignOut(ctx, p.AccessToken), auth.ErrInvalidToken)
	assert.ErrorIs(t, env.Auth.SignOut(ctx, "garbage"), auth.ErrInvalidToken)
}

func TestCreateUserDoesNotOpenSession(t *testing.T) {
	env := testsupport.New(t)
	ctx := context.Background()

	p, err := env.Auth.CreateUser(ctx, auth.SignUpInput{Email: "mia@acme.test", Password: testsupport.Password})
	require.NoError(t, err)
	assert.Empty(t, p.AccessToken)
	assert.Empty(t, p.RefreshToken)

	var n int
	require.NoError(t, env.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_sessions`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, env.Auth.DeleteUser(ctx, p.ID))
	_, err = env.Auth.SignIn(ctx, auth.LoginInput{Email: "mia@acme.test", Password: testsupport.Password})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	env := testsupport.New(t)
	other := auth.NewAuthService(env.Repo, []byte("another-secret-0123456789-abcdefghij"))

	p, err := env.Auth.SignUp(context.Background(), auth.SignUpInput{Email: "ana@acme.test", Password: testsupport.Password})
	require.NoError(t, err)

	_, err = other.Verify(p.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewAuthServicePanicsOnShortSecret(t *testing.T) {
	env := testsupport.New(t)
	assert.Panics(t, func() { auth.NewAuthService(env.Repo, []byte("short")) })
}
