// Package config loads service configuration from the environment. A local
// .env file is honored when present, matching the deployment layout of the
// original application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Jjzme2/Organizer-App/internal/obs"
)

// Secrets holds the four signing secrets, one per token kind. The service
// refuses to start when any of them is empty.
type Secrets struct {
	Access  string
	Refresh string
	Reset   string
	Email   string
}

// SMTP describes the outbound mail relay.
type SMTP struct {
	Host string
	Port int
	From string
}

// Config is the full runtime configuration of the auth service.
type Config struct {
	Addr      string
	PGDSN     string
	RedisAddr string

	Secrets Secrets

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	EmailTTL   time.Duration

	MaxRefreshTokensPerUser int
	BcryptCost              int
	RequireVerifiedEmail    bool

	ClientBaseURL string
	SMTP          SMTP

	RateLimitPerSecond int
	RateLimitBurst     int
}

var errMissingSecrets = errors.New("JWT_SECRET, REFRESH_TOKEN_SECRET, RESET_TOKEN_SECRET and EMAIL_TOKEN_SECRET must be set")

// Load reads configuration from the environment. Missing signing secrets are
// a hard error; everything else falls back to defaults suitable for local
// development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		obs.LogEvent("warn", "no .env file loaded", map[string]any{"error": err.Error()})
	}

	cfg := &Config{
		Addr:      envOr("ADDR", ":8080"),
		PGDSN:     os.Getenv("PG_DSN"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Secrets: Secrets{
			Access:  strings.TrimSpace(os.Getenv("JWT_SECRET")),
			Refresh: strings.TrimSpace(os.Getenv("REFRESH_TOKEN_SECRET")),
			Reset:   strings.TrimSpace(os.Getenv("RESET_TOKEN_SECRET")),
			Email:   strings.TrimSpace(os.Getenv("EMAIL_TOKEN_SECRET")),
		},
		AccessTTL:               durationOr("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL:              durationOr("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetTTL:                durationOr("RESET_TOKEN_TTL", time.Hour),
		EmailTTL:                durationOr("EMAIL_TOKEN_TTL", 24*time.Hour),
		MaxRefreshTokensPerUser: intOr("MAX_REFRESH_TOKENS_PER_USER", 5),
		BcryptCost:              intOr("BCRYPT_COST", 10),
		RequireVerifiedEmail:    boolOr("REQUIRE_VERIFIED_EMAIL", false),
		ClientBaseURL:           envOr("CLIENT_URL", "http://localhost:5173"),
		SMTP: SMTP{
			Host: os.Getenv("SMTP_HOST"),
			Port: intOr("SMTP_PORT", 587),
			From: os.Getenv("EMAIL_FROM"),
		},
		RateLimitPerSecond: intOr("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     intOr("RATE_LIMIT_BURST", 20),
	}

	if err := cfg.Secrets.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports whether every signing secret is present.
func (s Secrets) Validate() error {
	if s.Access == "" || s.Refresh == "" || s.Reset == "" || s.Email == "" {
		return errMissingSecrets
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		obs.LogEvent("warn", "invalid integer in environment", map[string]any{"key": key, "value": v})
		return fallback
	}
	return n
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		obs.LogEvent("warn", "invalid duration in environment", map[string]any{"key": key, "value": v})
		return fallback
	}
	return d
}

func boolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		obs.LogEvent("warn", "invalid boolean in environment", map[string]any{"key": key, "value": v})
		return fallback
	}
	return b
}

// String renders the config for startup logging with secrets elided.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s pg=%t redis=%t access_ttl=%s refresh_ttl=%s cap=%d",
		c.Addr, c.PGDSN != "", c.RedisAddr != "", c.AccessTTL, c.RefreshTTL, c.MaxRefreshTokensPerUser)
}
