package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Production = "production"

// Config carries all environment-driven settings for the API process.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Addr     string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// TrustProxy honors X-Forwarded-For for rate-limit client addresses.
	// Leave off unless a proxy in front of the API rewrites the header.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	DatabaseDSN string `env:"DATABASE_DSN"`
	RedisURL    string `env:"REDIS_URL"`

	// AuthSecret signs credentials. Rotating it invalidates every
	// outstanding token; that is documented behavior.
	AuthSecret string        `env:"AUTH_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// StoreTimeout bounds every call to the credential and counter stores.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	SeedsDir      string `env:"SEEDS_DIR" envDefault:"migrations/seeds"`
}

// Load reads .env files (when present) and then the process environment.
func Load() (*Config, error) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return nil, fmt.Errorf("load %s: %w", file, err)
			}
		}
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production hardening
// (redacted internal errors, JSON logs).
func (c *Config) IsProduction() bool {
	return c.Env == Production
}
