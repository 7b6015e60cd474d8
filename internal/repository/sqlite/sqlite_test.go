package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/repository/sqlite"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
)

func fixtures() (*models.Company, *models.Profile) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c := &models.Company{
		ID: "c1", CompanyName: "Acme", BusinessType: models.BusinessRetail,
		Location: "Lisbon", Email: "hq@acme.test", OwnerID: "u1", CreatedAt: now,
	}
	p := &models.Profile{ID: "u1", Name: "Ana", Email: "ana@acme.test", CompanyID: "c1", CreatedAt: now}
	return c, p
}

func TestProvision_RollsBackOnFailedInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO profiles").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	c, p := fixtures()
	err = sqlite.NewRepository(db).Provision(context.Background(), c, p, models.RoleAdmin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvision_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u1", "admin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	c, p := fixtures()
	require.NoError(t, sqlite.NewRepository(db).Provision(context.Background(), c, p, models.RoleAdmin))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvision_RealRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewRepository(db)

	c, p := fixtures()
	require.NoError(t, repo.CreateProfile(ctx, p))

	// the profile id collides, so the company insert must not survive
	err = repo.Provision(ctx, c, p, models.RoleAdmin)
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n))
	assert.Zero(t, n)
	roles, err := repo.ListRoles(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewRepository(db)

	u := &auth.User{
		ID: "u1", Email: "ana@acme.test", PasswordHash: "hash", Active: true,
		Metadata: map[string]any{"name": "Ana"}, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateUser(ctx, u))

	dup := *u
	dup.ID = "u2"
	assert.ErrorIs(t, repo.CreateUser(ctx, &dup), auth.ErrUserExists)

	got, err := repo.GetUserByEmail(ctx, "ana@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.True(t, got.Active)
	assert.Equal(t, "Ana", got.Metadata["name"])

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, repo.DeleteUser(ctx, "u1"))
	_, err = repo.GetUserByID(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewRepository(db)

	now := time.Now()
	for _, id := range []string{"s1", "s2"} {
		require.NoError(t, repo.CreateSession(ctx, &auth.Session{
			ID: id, UserID: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}))
	}

	s, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.WithinDuration(t, now.Add(time.Hour), s.ExpiresAt, time.Second)

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	_, err = repo.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	require.NoError(t, repo.DeleteSessionsByUser(ctx, "u1"))
	_, err = repo.GetSession(ctx, "s2")
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}
