package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/r2r72/x-mkt-v1/internal/service/identity"
)

type Config struct {
	Addr     string `mapstructure:"addr"`
	BaseURL  string `mapstructure:"base_url"`
	Database struct {
		Driver string `mapstructure:"driver"`
		URL    string `mapstructure:"url"`
	} `mapstructure:"database"`
	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"auth"`
	Identity struct {
		RolePolicy string `mapstructure:"role_policy"`
	} `mapstructure:"identity"`
	Session struct {
		IdleTTL        time.Duration `mapstructure:"idle_ttl"`
		ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
		CookieSecure   bool          `mapstructure:"cookie_secure"`
		MaxSessions    int           `mapstructure:"max_sessions"`
	} `mapstructure:"session"`
	RateLimit struct {
		RPM   int `mapstructure:"rpm"`
		Burst int `mapstructure:"burst"`
	} `mapstructure:"ratelimit"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("identity.role_policy", string(identity.PolicyFirstWins))
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.resolve_timeout", 10*time.Second)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("ratelimit.rpm", 10)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml from . or .. when present, then the environment.
// Nested keys map to upper-case env names with "." replaced by "_".
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// explicit bindings
	_ = v.BindEnv("base_url", "BASE_URL")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url/DATABASE_URL required"))
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret/JWT_SECRET must be at least 32 bytes"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		errs = append(errs, errors.New("auth.refresh_ttl must exceed a positive auth.access_ttl"))
	}
	if _, err := identity.ParseRolePolicy(c.Identity.RolePolicy); err != nil {
		errs = append(errs, fmt.Errorf("identity.role_policy: %w", err))
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, errors.New("session.max_sessions must not be negative"))
	}
	if c.RateLimit.RPM <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("ratelimit.rpm and ratelimit.burst must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}
	return errors.Join(errs...)
}
