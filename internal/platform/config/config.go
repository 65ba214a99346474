// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Token secrets, lifetimes and lockout limits are handed to
    constructors ([sec.NewTokenService], [auth.NewService]); nothing reads
    the environment after startup.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the storefront API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL) holding the credential store.
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value store (Redis) holding sessions and the mail outbox.
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing material. Every token kind has its own secret.
	Tokens TokenConfig

	// Account protection
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION"  envDefault:"15m"`
	ResetOTPTTL      time.Duration `env:"RESET_OTP_TTL"     envDefault:"10m"`
	BcryptCost       int           `env:"BCRYPT_COST"       envDefault:"10"`

	// RequireEmailVerification registers accounts as pending until the
	// emailed link is followed. When false, accounts start active.
	RequireEmailVerification bool `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"true"`

	// Two-factor provisioning
	TOTPIssuer string `env:"TOTP_ISSUER" envDefault:"A-Z Express"`

	// Notifications
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	MailFrom    string `env:"MAIL_FROM"    envDefault:"A-Z Express Support <support@azexpress.local>"`
	NotifySink  string `env:"NOTIFY_SINK"  envDefault:"log"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"azexpress.app"`
}

// TokenConfig groups per-kind signing secrets and lifetimes.
type TokenConfig struct {
	AccessSecret string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	AccessTTL    time.Duration `env:"ACCESS_EXPIRES_IN" envDefault:"15m"`

	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	RefreshTTL    time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"168h"`

	VerifySecret string        `env:"VERIFY_TOKEN_SECRET,required,notEmpty"`
	VerifyTTL    time.Duration `env:"VERIFY_EXPIRES_IN" envDefault:"24h"`

	ResetSecret string        `env:"RESET_TOKEN_SECRET,required,notEmpty"`
	ResetTTL    time.Duration `env:"RESET_EXPIRES_IN" envDefault:"10m"`

	ChallengeSecret string        `env:"LOGIN_CHALLENGE_SECRET,required,notEmpty"`
	ChallengeTTL    time.Duration `env:"LOGIN_CHALLENGE_EXPIRES_IN" envDefault:"5m"`
}

// Notification sink selectors accepted by NOTIFY_SINK.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
)

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects combinations the parser cannot catch on its own.
func (c *Config) validate() error {
	if c.LockoutThreshold < 1 {
		return fmt.Errorf("config: LOCKOUT_THRESHOLD must be >= 1, got %d", c.LockoutThreshold)
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("config: LOCKOUT_DURATION must be positive")
	}
	if c.NotifySink != SinkLog && c.NotifySink != SinkRedis {
		return fmt.Errorf("config: NOTIFY_SINK must be %q or %q, got %q", SinkLog, SinkRedis, c.NotifySink)
	}

	secrets := map[string]string{
		"ACCESS_TOKEN_SECRET":    c.Tokens.AccessSecret,
		"REFRESH_TOKEN_SECRET":   c.Tokens.RefreshSecret,
		"VERIFY_TOKEN_SECRET":    c.Tokens.VerifySecret,
		"RESET_TOKEN_SECRET":     c.Tokens.ResetSecret,
		"LOGIN_CHALLENGE_SECRET": c.Tokens.ChallengeSecret,
	}
	seen := make(map[string]string, len(secrets))
	for name, value := range secrets {
		if other, dup := seen[value]; dup {
			return fmt.Errorf("config: %s and %s must not share a secret", name, other)
		}
		seen[value] = name
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
