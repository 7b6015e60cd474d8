package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/config"
	"github.com/r2r72/x-mkt-v1/internal/ratelimit"
	"github.com/r2r72/x-mkt-v1/internal/repository/pg"
	"github.com/r2r72/x-mkt-v1/internal/repository/sqlite"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/identity"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
	"github.com/r2r72/x-mkt-v1/internal/session"
)

// database hides which driver backs the repositories.
type database struct {
	auth      auth.AuthRepository
	dir       directory.Repository
	campaigns campaign.Repository
	tasks     task.Repository
	ping      func(ctx context.Context) error
	migrate   func(ctx context.Context) error
	close     func()
}

func openDatabase(ctx context.Context, cfg config.Config) (*database, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := pg.NewDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		repo := pg.NewRepository(pool)
		return &database{
			auth:      repo,
			dir:       repo,
			campaigns: repo,
			tasks:     repo,
			ping:      pool.Ping,
			migrate:   func(ctx context.Context) error { return pg.Migrate(ctx, pool) },
			close:     pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		repo := sqlite.NewRepository(db)
		return &database{
			auth:      repo,
			dir:       repo,
			campaigns: repo,
			tasks:     repo,
			ping:      db.PingContext,
			migrate:   func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
			close:     func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

type app struct {
	db          *database
	redis       *redis.Client
	sessions    *session.Registry
	campaigns   *campaign.Service
	tasks       *task.Service
	limiter     ratelimit.Limiter
	limitPolicy ratelimit.Policy
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		db.close()
		return nil, err
	}

	authSvc := auth.NewAuthService(db.auth, []byte(cfg.Auth.JWTSecret),
		auth.WithTTL(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		auth.WithLogger(log),
	)
	dirSvc := directory.NewService(db.dir)

	policy, err := identity.ParseRolePolicy(cfg.Identity.RolePolicy)
	if err != nil {
		db.close()
		return nil, err
	}
	opts := session.Options{ResolveTimeout: cfg.Session.ResolveTimeout}
	registry := session.NewRegistry(func() *session.Store {
		client := backend.NewLocal(authSvc, dirSvc, log)
		return session.New(client, identity.NewResolver(client, policy), log, opts)
	}, cfg.Session.IdleTTL, log, session.WithMaxSessions(cfg.Session.MaxSessions))
	registry.Start()

	a := &app{
		db:          db,
		sessions:    registry,
		campaigns:   campaign.NewService(db.campaigns),
		tasks:       task.NewService(db.tasks, dirSvc),
		limitPolicy: ratelimit.Policy{RPM: cfg.RateLimit.RPM, Burst: cfg.RateLimit.Burst},
	}
	if err := a.initLimiter(ctx, cfg, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// initLimiter prefers Redis when configured so limits hold across instances.
func (a *app) initLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Redis.Addr == "" {
		lim, err := ratelimit.NewMemory(a.limitPolicy)
		if err != nil {
			return err
		}
		a.limiter = lim
		return nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	lim, err := ratelimit.NewRedis(a.redis, a.limitPolicy, "x-mkt:login")
	if err != nil {
		return err
	}
	a.limiter = lim
	log.Info("login rate limit backed by redis", "addr", cfg.Redis.Addr)
	return nil
}

func (a *app) ping(ctx context.Context) error {
	return a.db.ping(ctx)
}

func (a *app) Close() {
	a.sessions.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.close()
}
