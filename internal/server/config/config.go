// Package config handles configuration for the server component,
// including defaults, a JSON or YAML file overlay, environment variables and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/estately/internal/flagx"
	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"
)

// DevSecretKey signs tokens when nothing else is configured. It is refused
// in production.
const DevSecretKey = "estately-development-secret-change-me"

// MinSecretKeyLength is the shortest HMAC secret accepted in production.
const MinSecretKeyLength = 32

// Environment variables read after the config file.
const (
	EnvSecretKey     = "AUTH_JWT_SECRET"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// Config holds runtime settings for the estately auth server.
type Config struct {
	EndpointAddrHTTP string
	EndpointAddrGRPC string
	// DatabaseDSN is a pgx DSN. Empty selects the in-memory store, which is
	// only allowed outside production.
	DatabaseDSN string
	SecretKey   string

	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration

	Environment    string
	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	LogBackend     string
	Debug          bool

	BcryptCost  int
	HashWorkers int

	LoginRatePerMinute int
	LoginBurst         int

	HealthCheckInterval time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = DevSecretKey
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.Environment = EnvDevelopment
	c.SessionBackend = ""
	c.RedisAddr = "localhost:6379"
	c.LogBackend = logging.BackendSlog
	c.BcryptCost = 12
	c.HashWorkers = 0
	c.LoginRatePerMinute = 20
	c.LoginBurst = 5
	c.HealthCheckInterval = 10 * time.Second
	c.ReadTimeout = 10 * time.Second
	c.WriteTimeout = 15 * time.Second
	c.IdleTimeout = 60 * time.Second
	c.ShutdownTimeout = 10 * time.Second
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and finally command-line
// flags. The result is validated.
func LoadConfig(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFile(args); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	parseEnv(cfg, getenv)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := getenv(EnvSecretKey); v != "" {
		cfg.SecretKey = v
	}
	if v := getenv(EnvRedisPassword); v != "" {
		cfg.RedisPassword = v
	}
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	if c.SessionBackend == "" {
		if c.DatabaseDSN == "" {
			c.SessionBackend = SessionBackendMemory
		} else {
			c.SessionBackend = SessionBackendPostgres
		}
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	switch c.LogBackend {
	case logging.BackendSlog, logging.BackendZap:
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.LogBackend))
	}

	switch c.SessionBackend {
	case SessionBackendMemory:
		if c.DatabaseDSN != "" {
			errs = append(errs, errors.New("memory session backend cannot be combined with a database"))
		}
	case SessionBackendPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("postgres session backend requires a database DSN"))
		}
	case SessionBackendRedis:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("redis session backend requires a database DSN for users"))
		}
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis session backend requires a redis address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity durations must be positive"))
	} else if c.AccessTokenValidityDuration >= c.RefreshTokenValidityDuration {
		errs = append(errs, errors.New("access token validity must be shorter than refresh token validity"))
	}
	if c.LoginRatePerMinute <= 0 || c.LoginBurst <= 0 {
		errs = append(errs, errors.New("login rate and burst must be positive"))
	}
	if c.BcryptCost < auth.MinBcryptCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between %d and %d", auth.MinBcryptCost, bcrypt.MaxCost))
	}
	if c.HashWorkers < 0 {
		errs = append(errs, errors.New("hash workers must not be negative"))
	}
	if c.HealthCheckInterval <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("health check interval and shutdown timeout must be positive"))
	}

	if c.IsProduction() {
		if c.SecretKey == DevSecretKey {
			errs = append(errs, errors.New("development secret key is not allowed in production"))
		} else if c.SecretKey != "" && len(c.SecretKey) < MinSecretKeyLength {
			errs = append(errs, fmt.Errorf("secret key must be at least %d bytes in production", MinSecretKeyLength))
		}
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("database DSN is required in production"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
