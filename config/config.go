// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required delegated-login credentials, use ValidateExternalLoginReady.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPAddr string

	// Startup dataset (credentials, approved set, ban list)
	UsersFile string

	// Admin address-ban endpoint secret. Generated per process when unset,
	// matching the throwaway-secret behavior expected for local runs.
	AdminSecret string

	// Pre-seeded approved identity (super-moderator)
	SuperModerator string

	// Delegated identity provider (Reddit-style OAuth)
	RedditClientID     string
	RedditClientSecret string
	RedditRedirectURI  string
	RedditScopes       string
	MinAccountAge      time.Duration
	MinKarma           int

	// Rate limiting
	RateLimit       int
	RateLimitStrict int
	RateLimitWindow time.Duration
}

// Load reads environment variables and applies defaults. It doesn't fail if
// provider creds are missing; use ValidateExternalLoginReady() when the
// delegated login route must work. A missing users file disables nothing —
// the service starts with empty registries.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.UsersFile = os.Getenv("CHAT_USERS_FILE")
	if cfg.UsersFile == "" {
		cfg.UsersFile = "users.json"
	}

	cfg.AdminSecret = os.Getenv("CHAT_ADMIN_SECRET")
	if cfg.AdminSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate admin secret: %w", err)
		}
		cfg.AdminSecret = hex.EncodeToString(b)
	}

	cfg.SuperModerator = os.Getenv("CHAT_SUPERMOD")

	// Delegated identity provider
	cfg.RedditClientID = os.Getenv("REDDIT_CLIENT_ID")
	cfg.RedditClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	cfg.RedditRedirectURI = os.Getenv("REDDIT_REDIRECT_URI")
	cfg.RedditScopes = os.Getenv("REDDIT_SCOPES")
	if cfg.RedditScopes == "" {
		cfg.RedditScopes = "identity"
	}

	ageDays := envInt("REDDIT_MIN_ACCOUNT_AGE_DAYS", 30)
	if ageDays < 0 {
		return nil, fmt.Errorf("REDDIT_MIN_ACCOUNT_AGE_DAYS must be >= 0, got %d", ageDays)
	}
	cfg.MinAccountAge = time.Duration(ageDays) * 24 * time.Hour
	cfg.MinKarma = envInt("REDDIT_MIN_KARMA", 0)

	// Rate limiting: general per-route budget and the stricter claim/login
	// budget, both over the same trailing window.
	cfg.RateLimit = envInt("RATE_LIMIT_REQUESTS", 100)
	cfg.RateLimitStrict = envInt("RATE_LIMIT_CLAIM_REQUESTS", 10)
	windowSeconds := envInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	return cfg, nil
}

// ValidateExternalLoginReady checks required fields for the delegated login flow.
func (c *Config) ValidateExternalLoginReady() error {
	if c.RedditClientID == "" || c.RedditClientSecret == "" || c.RedditRedirectURI == "" {
		return fmt.Errorf("missing reddit env: require REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_REDIRECT_URI")
	}
	return nil
}

// envInt returns an integer environment variable value or default if not set or invalid.
func envInt(key string, defaultVal int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return defaultVal
}
