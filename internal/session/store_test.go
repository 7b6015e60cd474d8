package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/identity"
	"github.com/r2r72/x-mkt-v1/internal/testsupport"
)

func newStore(t *testing.T, env *testsupport.Env, client backend.Client, resolver Resolver) *Store {
	t.Helper()
	if resolver == nil {
		resolver = identity.NewResolver(client, identity.PolicyFirstWins)
	}
	s := New(client, resolver, env.Log, Options{ResolveTimeout: 5 * time.Second})
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(s.Dispose)
	return s
}

func signup(email string) SignupInput {
	return SignupInput{
		CompanyName:  "Acme Retail",
		BusinessType: models.BusinessRetail,
		Location:     "Lisbon",
		CompanyEmail: "hello@acme.test",
		AdminName:    "Ada Admin",
		AdminEmail:   email,
		Password:     testsupport.Password,
	}
}

// faultyClient fails selected backend writes.
type faultyClient struct {
	backend.Client
	provisionErr  error
	createRoleErr error
	sessionErr    error
}

func (c *faultyClient) CurrentSession(ctx context.Context) (*models.Principal, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	return c.Client.CurrentSession(ctx)
}

func (c *faultyClient) Provision(ctx context.Context, in directory.ProvisionInput) (*models.Profile, *models.Company, error) {
	if c.provisionErr != nil {
		return nil, nil, c.provisionErr
	}
	return c.Client.Provision(ctx, in)
}

func (c *faultyClient) CreateRole(ctx context.Context, id string, role models.Role) error {
	if c.createRoleErr != nil {
		return c.createRoleErr
	}
	return c.Client.CreateRole(ctx, id, role)
}

// gatedResolver holds every resolution until its principal's gate opens.
type gatedResolver struct {
	inner     Resolver
	started   chan string
	cancelled atomic.Int32

	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedResolver(inner Resolver) *gatedResolver {
	return &gatedResolver{inner: inner, started: make(chan string, 16), gates: make(map[string]chan struct{})}
}

func (g *gatedResolver) gate(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedResolver) open(id string) { close(g.gate(id)) }

func (g *gatedResolver) Resolve(ctx context.Context, p *models.Principal) (*identity.Identity, error) {
	g.started <- p.ID
	<-g.gate(p.ID)
	if ctx.Err() != nil {
		g.cancelled.Add(1)
	}
	return g.inner.Resolve(context.Background(), p)
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, *models.Principal) (*identity.Identity, error) {
	return nil, f.err
}

func TestStore_InitWithoutSession(t *testing.T) {
	env := testsupport.New(t)
	client := env.Client()

	s := New(client, identity.NewResolver(client, identity.PolicyFirstWins), env.Log, Options{})
	assert.True(t, s.Snapshot().Loading, "loading until initialized")
	_, err := s.Login(context.Background(), "a@b.test", "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, 1, client.Subscribers(), "exactly one subscription")

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)

	s.Dispose()
	s.Dispose()
	assert.Equal(t, 0, client.Subscribers(), "subscription released")
	assert.ErrorIs(t, s.Init(context.Background()), ErrDisposed)
}

func TestStore_InitPicksUpExistingSession(t *testing.T) {
	env := testsupport.New(t)
	_, company := env.SeedTenant(t, "owner@acme.test", "Acme")
	env.SeedMember(t, company.ID, "sam@acme.test", "Sam Sales", models.RoleSales)

	client := env.Client()
	_, err := client.SignIn(context.Background(), "sam@acme.test", testsupport.Password)
	require.NoError(t, err)

	s := newStore(t, env, client, nil)
	require.NoError(t, s.Wait(context.Background()))

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, models.RoleSales, snap.Role())
	assert.Equal(t, "Sam Sales", snap.User.Name)
	require.NotNil(t, snap.Company)
	assert.Equal(t, company.ID, snap.Company.ID)
}

// Scenario A.
func TestStore_LoginMarketerIsKeptOutOfAdmin(t *testing.T) {
	env := testsupport.New(t)
	_, company := env.SeedTenant(t, "owner@acme.test", "Acme")
	env.SeedMember(t, company.ID, "mia@acme.test", "Mia Marketer", models.RoleMarketer)
	s := newStore(t, env, env.Client(), nil)

	home, err := s.Login(context.Background(), "mia@acme.test", testsupport.Password)
	require.NoError(t, err)
	assert.Equal(t, "/marketer", home)

	snap := s.Snapshot()
	assert.Equal(t, models.RoleMarketer, snap.Role())
	assert.True(t, snap.IsAuthenticated)
	assert.NotNil(t, snap.Principal)

	d := access.Decide(snap.Subject(), "/admin", []models.Role{models.RoleAdmin})
	assert.Equal(t, access.OutcomeRedirectHome, d.Outcome)
	assert.Equal(t, "/marketer", d.Location)
}

func TestStore_LoginRejectedLeavesSnapshotUnchanged(t *testing.T) {
	env := testsupport.New(t)
	env.SeedTenant(t, "owner@acme.test", "Acme")
	s := newStore(t, env, env.Client(), nil)
	before := s.Snapshot()

	_, err := s.Login(context.Background(), "owner@acme.test", "wrong-pass1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, before, s.Snapshot())

	_, err = s.Login(context.Background(), "nobody@acme.test", testsupport.Password)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, before, s.Snapshot())
}

// Scenario B.
func TestStore_SignupProvisionsTenant(t *testing.T) {
	env := testsupport.New(t)
	s := newStore(t, env, env.Client(), nil)

	home, err := s.Signup(context.Background(), signup("ada@acme.test"))
	require.NoError(t, err)
	assert.Equal(t, "/admin", home)

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, models.RoleAdmin, snap.Role())
	assert.Equal(t, "Ada Admin", snap.User.Name)
	require.NotNil(t, snap.Company)
	assert.Equal(t, "Acme Retail", snap.Company.CompanyName)
	assert.Equal(t, snap.User.ID, snap.Company.OwnerID)
	assert.Equal(t, snap.Company.ID, snap.User.CompanyID)
}

func TestStore_SignupRejectsInvalidFormBeforeCreatingPrincipal(t *testing.T) {
	env := testsupport.New(t)
	s := newStore(t, env, env.Client(), nil)

	in := signup("ada@acme.test")
	in.BusinessType = "casino"
	_, err := s.Signup(context.Background(), in)
	assert.ErrorIs(t, err, directory.ErrInvalidTenant)

	_, err = env.Repo.GetUserByEmail(context.Background(), "ada@acme.test")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// Scenario C.
func TestStore_SignupProvisioningFailureFallsBackOnLogin(t *testing.T) {
	env := testsupport.New(t)
	client := &faultyClient{Client: env.Client(), provisionErr: errors.New("insert company: disk full")}
	s := newStore(t, env, client, nil)

	_, err := s.Signup(context.Background(), signup("ada@acme.test"))
	require.ErrorIs(t, err, ErrSignupIncomplete)
	assert.False(t, s.Snapshot().IsAuthenticated)

	var companies int
	require.NoError(t, env.DB.QueryRow(`SELECT COUNT(*) FROM companies`).Scan(&companies))
	assert.Zero(t, companies, "no orphaned tenant")

	home, err := s.Login(context.Background(), "ada@acme.test", testsupport.Password)
	require.NoError(t, err)
	assert.Equal(t, access.LoginPath, home)

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Nil(t, snap.Company)
	assert.Empty(t, snap.User.CompanyID)
	assert.Equal(t, "ada@acme.test", snap.User.Email)
	assert.Equal(t, "Ada", snap.User.Name)
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	env := testsupport.New(t)
	env.SeedTenant(t, "owner@acme.test", "Acme")
	s := newStore(t, env, env.Client(), nil)
	_, err := s.Login(context.Background(), "owner@acme.test", testsupport.Password)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.Equal(t, access.LoginPath, s.Logout(context.Background()))
		snap := s.Snapshot()
		assert.False(t, snap.IsAuthenticated)
		assert.False(t, snap.Loading)
		assert.Nil(t, snap.User)
		assert.Nil(t, snap.Principal)
	}
}

type signOutFails struct {
	backend.Client
}

func (signOutFails) SignOut(context.Context) error { return errors.New("network down") }

func TestStore_LogoutClearsLocallyWhenBackendFails(t *testing.T) {
	env := testsupport.New(t)
	env.SeedTenant(t, "owner@acme.test", "Acme")
	client := signOutFails{Client: env.Client()}
	s := newStore(t, env, client, nil)
	_, err := s.Login(context.Background(), "owner@acme.test", testsupport.Password)
	require.NoError(t, err)

	assert.Equal(t, access.LoginPath, s.Logout(context.Background()))
	assert.False(t, s.Snapshot().IsAuthenticated)
}

// Scenario D.
func TestStore_LogoutDiscardsInFlightResolution(t *testing.T) {
	env := testsupport.New(t)
	owner, _ := env.SeedTenant(t, "owner@acme.test", "Acme")
	client := env.Client()
	gated := newGatedResolver(identity.NewResolver(env.Dir, identity.PolicyFirstWins))
	s := newStore(t, env, client, gated)

	_, err := client.SignIn(context.Background(), "owner@acme.test", testsupport.Password)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, <-gated.started)
	snap := s.Snapshot()
	assert.True(t, snap.Loading)
	assert.True(t, snap.IsAuthenticated)

	s.Logout(context.Background())
	gated.open(owner.ID)

	require.NoError(t, s.Wait(context.Background()))
	assert.Never(t, func() bool { return s.Snapshot().User != nil }, 150*time.Millisecond, 10*time.Millisecond)
	assert.False(t, s.Snapshot().IsAuthenticated)
	assert.EqualValues(t, 1, gated.cancelled.Load(), "in-flight resolution was cancelled")
}

func TestStore_NewerSignInWinsOverStaleResolution(t *testing.T) {
	env := testsupport.New(t)
	_, company := env.SeedTenant(t, "owner@acme.test", "Acme")
	first := env.SeedMember(t, company.ID, "mia@acme.test", "Mia", models.RoleMarketer)
	second := env.SeedMember(t, company.ID, "sam@acme.test", "Sam", models.RoleSales)

	client := env.Client()
	gated := newGatedResolver(identity.NewResolver(env.Dir, identity.PolicyFirstWins))
	s := newStore(t, env, client, gated)

	_, err := client.SignIn(context.Background(), "mia@acme.test", testsupport.Password)
	require.NoError(t, err)
	require.Equal(t, first.ID, <-gated.started)
	_, err = client.SignIn(context.Background(), "sam@acme.test", testsupport.Password)
	require.NoError(t, err)
	require.Equal(t, second.ID, <-gated.started)

	gated.open(second.ID)
	require.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, models.RoleSales, s.Snapshot().Role())

	gated.open(first.ID)
	assert.Never(t, func() bool { return s.Snapshot().Role() != models.RoleSales }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestStore_ResolutionFailureFailsClosed(t *testing.T) {
	env := testsupport.New(t)
	env.SeedTenant(t, "owner@acme.test", "Acme")
	s := newStore(t, env, env.Client(), failingResolver{err: errors.New("profiles: timeout")})

	home, err := s.Login(context.Background(), "owner@acme.test", testsupport.Password)
	assert.ErrorIs(t, err, ErrResolution)
	assert.Equal(t, access.LoginPath, home)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
}

func TestStore_AmbiguousRolesFailClosedUnderUniquePolicy(t *testing.T) {
	env := testsupport.New(t)
	_, company := env.SeedTenant(t, "owner@acme.test", "Acme")
	p := env.SeedMember(t, company.ID, "two@acme.test", "Two Hats", models.RoleMarketer)
	require.NoError(t, env.Dir.CreateRole(context.Background(), p.ID, models.RoleSales))

	client := env.Client()
	s := newStore(t, env, client, identity.NewResolver(client, identity.PolicyUnique))
	_, err := s.Login(context.Background(), "two@acme.test", testsupport.Password)
	assert.ErrorIs(t, err, ErrResolution)
	assert.False(t, s.Snapshot().IsAuthenticated)

	client2 := env.Client()
	s2 := newStore(t, env, client2, identity.NewResolver(client2, identity.PolicyFirstWins))
	home, err := s2.Login(context.Background(), "two@acme.test", testsupport.Password)
	require.NoError(t, err)
	assert.Equal(t, "/marketer", home)
}

func TestStore_TokenRefreshKeepsUserVisible(t *testing.T) {
	env := testsupport.New(t, auth.WithTTL(time.Second, time.Hour))
	env.SeedTenant(t, "owner@acme.test", "Acme")
	client := env.Client()
	s := newStore(t, env, client, nil)
	_, err := s.Login(context.Background(), "owner@acme.test", testsupport.Password)
	require.NoError(t, err)
	before := s.Snapshot()

	// the access token is inside the refresh window, so this rotates it
	p, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEqual(t, before.Principal.RefreshToken, p.RefreshToken)

	mid := s.Snapshot()
	assert.False(t, mid.Loading)
	assert.NotNil(t, mid.User)

	require.NoError(t, s.Wait(context.Background()))
	after := s.Snapshot()
	assert.Equal(t, models.RoleAdmin, after.Role())
	assert.Equal(t, p.RefreshToken, after.Principal.RefreshToken)
}

func TestStore_DisposeDiscardsInFlightResolution(t *testing.T) {
	env := testsupport.New(t)
	owner, _ := env.SeedTenant(t, "owner@acme.test", "Acme")
	client := env.Client()
	gated := newGatedResolver(identity.NewResolver(env.Dir, identity.PolicyFirstWins))
	s := New(client, gated, env.Log, Options{})
	require.NoError(t, s.Init(context.Background()))

	_, err := client.SignIn(context.Background(), "owner@acme.test", testsupport.Password)
	require.NoError(t, err)
	<-gated.started

	s.Dispose()
	gated.open(owner.ID)
	assert.Never(t, func() bool { return s.Snapshot().User != nil }, 150*time.Millisecond, 10*time.Millisecond)

	_, err = s.Login(context.Background(), "owner@acme.test", testsupport.Password)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestStore_RevalidateRefreshesAndReresolves(t *testing.T) {
	clk := testsupport.NewClock()
	env := testsupport.New(t, auth.WithClock(clk.Now), auth.WithTTL(time.Minute, time.Hour))
	owner, _ := env.SeedTenant(t, "owner@acme.test", "Acme")
	client := env.Client()
	s := newStore(t, env, client, nil)
	ctx := context.Background()

	_, err := s.Login(ctx, "owner@acme.test", testsupport.Password)
	require.NoError(t, err)
	before := s.Snapshot()
	require.Equal(t, models.RoleAdmin, before.Role())

	require.NoError(t, env.Dir.DeleteRoles(ctx, owner.ID))
	require.NoError(t, env.Dir.CreateRole(ctx, owner.ID, models.RoleMarketer))

	clk.Advance(2 * time.Minute)
	require.NoError(t, s.Revalidate(ctx))
	require.NoError(t, s.Wait(ctx))

	after := s.Snapshot()
	assert.True(t, after.IsAuthenticated)
	assert.Equal(t, models.RoleMarketer, after.Role())
	assert.NotEqual(t, before.Principal.RefreshToken, after.Principal.RefreshToken)
}

func TestStore_RevalidateEndsExpiredSession(t *testing.T) {
	clk := testsupport.NewClock()
	env := testsupport.New(t, auth.WithClock(clk.Now), auth.WithTTL(time.Minute, time.Hour))
	owner, _ := env.SeedTenant(t, "owner@acme.test", "Acme")
	client := env.Client()
	s := newStore(t, env, client, nil)
	ctx := context.Background()

	_, err := s.Login(ctx, "owner@acme.test", testsupport.Password)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	require.NoError(t, s.Revalidate(ctx))

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	d := access.Decide(snap.Subject(), "/admin", []models.Role{models.RoleAdmin})
	assert.Equal(t, access.OutcomeRedirectLogin, d.Outcome)

	_, err = client.GetRoles(ctx, owner.ID)
	assert.ErrorIs(t, err, backend.ErrNoSession)
	_, err = s.Members(ctx)
	assert.ErrorIs(t, err, backend.ErrNoSession)
}

func TestStore_RevalidateSignsOutOnBackendFailure(t *testing.T) {
	env := testsupport.New(t)
	env.SeedTenant(t, "owner@acme.test", "Acme")
	client := &faultyClient{Client: env.Client()}
	s := newStore(t, env, client, identity.NewResolver(client, identity.PolicyFirstWins))
	ctx := context.Background()

	_, err := s.Login(ctx, "owner@acme.test", testsupport.Password)
	require.NoError(t, err)

	boom := errors.New("database unavailable")
	client.sessionErr = boom
	err = s.Revalidate(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Snapshot().IsAuthenticated)
}

func TestStore_RevalidateAnonymousIsNoop(t *testing.T) {
	env := testsupport.New(t)
	client := env.Client()

	unstarted := New(client, identity.NewResolver(client, identity.PolicyFirstWins), env.Log, Options{})
	assert.ErrorIs(t, unstarted.Revalidate(context.Background()), ErrNotInitialized)

	s := newStore(t, env, client, nil)
	require.NoError(t, s.Revalidate(context.Background()))
	assert.Equal(t, Snapshot{}, s.Snapshot())
}
