package pg_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/repository/pg"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
)

func newRepo(t *testing.T) (*pg.Repository, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pg.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool))
	return pg.NewRepository(pool), pool
}

func TestProvisionAndResolve(t *testing.T) {
	repo, pool := newRepo(t)
	ctx := context.Background()
	authSvc := auth.NewAuthService(repo, []byte("pg-test-secret-0123456789-abcdefghij"), auth.WithPasswordCost(4))
	dir := directory.NewService(repo)

	email := "ana+" + uuid.NewString()[:8] + "@acme.test"
	p, err := authSvc.SignUp(ctx, auth.SignUpInput{Email: email, Password: "s3cret-pass", Metadata: map[string]any{"name": "Ana"}})
	require.NoError(t, err)

	profile, company, err := dir.Provision(ctx, directory.ProvisionInput{
		Tenant: directory.TenantInput{CompanyName: "Acme", BusinessType: models.BusinessRetail, Location: "Lisbon", Email: "hq@acme.test"},
		Admin:  directory.ProfileInput{UserID: p.ID, Name: "Ana", Email: email},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.DeleteRoles(ctx, p.ID)
		_ = repo.DeleteProfile(ctx, profile.ID)
		_, _ = pool.Exec(ctx, "DELETE FROM companies WHERE id = $1", company.ID)
		_ = authSvc.DeleteUser(ctx, p.ID)
	})

	gotProfile, gotCompany, err := dir.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", gotProfile.Name)
	assert.Equal(t, company.ID, gotCompany.ID)

	roles, err := dir.GetRoles(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAdmin}, roles)

	members, err := dir.ListMembers(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, models.RoleAdmin, members[0].Role)

	_, err = authSvc.SignUp(ctx, auth.SignUpInput{Email: email, Password: "s3cret-pass"})
	assert.ErrorIs(t, err, auth.ErrUserExists)

	next, err := authSvc.Refresh(ctx, p.RefreshToken)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), next.ExpiresAt, time.Minute)
}

func TestCampaignsAndTasks(t *testing.T) {
	repo, pool := newRepo(t)
	ctx := context.Background()
	authSvc := auth.NewAuthService(repo, []byte("pg-test-secret-0123456789-abcdefghij"), auth.WithPasswordCost(4))
	dir := directory.NewService(repo)

	email := "ana+" + uuid.NewString()[:8] + "@acme.test"
	p, err := authSvc.SignUp(ctx, auth.SignUpInput{Email: email, Password: "s3cret-pass"})
	require.NoError(t, err)
	profile, company, err := dir.Provision(ctx, directory.ProvisionInput{
		Tenant: directory.TenantInput{CompanyName: "Acme", BusinessType: models.BusinessRetail, Location: "Lisbon", Email: "hq@acme.test"},
		Admin:  directory.ProfileInput{UserID: p.ID, Name: "Ana", Email: email},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.DeleteRoles(ctx, p.ID)
		_ = repo.DeleteProfile(ctx, profile.ID)
		_, _ = pool.Exec(ctx, "DELETE FROM companies WHERE id = $1", company.ID)
		_ = authSvc.DeleteUser(ctx, p.ID)
	})

	campaigns := campaign.NewService(repo)
	at := time.Now().Add(time.Hour)
	c, err := campaigns.Create(ctx, company.ID, p.ID, campaign.Input{
		Name: "Launch", Type: models.CampaignEmail, Subject: "Hi", Content: "Hello",
		ScheduledAt: &at, Audience: []string{"customers", "leads"},
	})
	require.NoError(t, err)
	got, err := campaigns.Get(ctx, company.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "leads"}, got.Audience)
	assert.Equal(t, models.CampaignScheduled, got.Status)
	_, err = campaigns.Get(ctx, uuid.NewString(), c.ID)
	assert.ErrorIs(t, err, campaign.ErrNotFound)

	tasks := task.NewService(repo, dir)
	admin := task.Actor{ID: p.ID, CompanyID: company.ID, Role: models.RoleAdmin}
	tk, err := tasks.Create(ctx, admin, task.Input{Title: "Review copy", AssignedTo: p.ID})
	require.NoError(t, err)
	_, err = tasks.SetStatus(ctx, admin, tk.ID, models.TaskCompleted)
	require.NoError(t, err)
	list, err := tasks.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].AssigneeName)
	assert.Equal(t, models.TaskCompleted, list[0].Status)
}
