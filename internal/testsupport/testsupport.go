// Package testsupport wires the services over an in-memory SQLite database
// for tests.
package testsupport

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/repository/sqlite"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
)

// Secret is a valid HS256 secret for tests.
const Secret = "test-secret-0123456789-abcdefghijklmnop"

// Password satisfies the password policy.
const Password = "s3cret-pass"

type Env struct {
	DB   *sql.DB
	Repo *sqlite.Repository
	Auth *auth.AuthService
	Dir  *directory.Service
	Log  *slog.Logger

	Campaigns *campaign.Service
	Tasks     *task.Service
}

// New opens a private database. Extra options are applied after the test
// defaults (minimum bcrypt cost, silent logger).
func New(t testing.TB, opts ...auth.Option) *Env {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := Logger()
	repo := sqlite.NewRepository(db)
	all := append([]auth.Option{auth.WithPasswordCost(bcrypt.MinCost), auth.WithLogger(log)}, opts...)
	dir := directory.NewService(repo)
	return &Env{
		DB:        db,
		Repo:      repo,
		Auth:      auth.NewAuthService(repo, []byte(Secret), all...),
		Dir:       dir,
		Log:       log,
		Campaigns: campaign.NewService(repo),
		Tasks:     task.NewService(repo, dir),
	}
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Client returns a fresh per-browser client.
func (e *Env) Client() *backend.Local {
	return backend.NewLocal(e.Auth, e.Dir, e.Log)
}

// SeedPrincipal creates a principal with no profile or role.
func (e *Env) SeedPrincipal(t testing.TB, email string) *models.Principal {
	t.Helper()
	p, err := e.Auth.CreateUser(context.Background(), auth.SignUpInput{Email: email, Password: Password})
	require.NoError(t, err)
	return p
}

// SeedTenant creates a company with email as its admin.
func (e *Env) SeedTenant(t testing.TB, email, companyName string) (*models.Principal, *models.Company) {
	t.Helper()
	p := e.SeedPrincipal(t, email)
	_, c, err := e.Dir.Provision(context.Background(), directory.ProvisionInput{
		Tenant: directory.TenantInput{
			CompanyName:  companyName,
			BusinessType: models.BusinessTechnology,
			Location:     "Berlin",
			Email:        "office@" + slug(companyName) + ".test",
		},
		Admin: directory.ProfileInput{UserID: p.ID, Name: "Admin " + companyName, Email: email},
	})
	require.NoError(t, err)
	return p, c
}

// SeedMember adds a principal with a profile in companyID and one role row.
func (e *Env) SeedMember(t testing.TB, companyID, email, name string, role models.Role) *models.Principal {
	t.Helper()
	ctx := context.Background()
	p := e.SeedPrincipal(t, email)
	_, err := e.Dir.CreateProfile(ctx, directory.ProfileInput{UserID: p.ID, Name: name, Email: email, CompanyID: companyID})
	require.NoError(t, err)
	require.NoError(t, e.Dir.CreateRole(ctx, p.ID, role))
	return p
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	return string(out)
}

// Clock is a manually advanced clock for auth.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
