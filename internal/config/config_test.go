package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.MongoDB != "smart_attendance" {
		t.Errorf("MongoDB = %q", cfg.MongoDB)
	}
	if cfg.ReauthTTL != 15*time.Minute {
		t.Errorf("ReauthTTL = %v", cfg.ReauthTTL)
	}
	if cfg.RateLimitBackend != "memory" {
		t.Errorf("RateLimitBackend = %q", cfg.RateLimitBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REAUTH_TTL", "5m")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")
	t.Setenv("SESSION_MAX_AGE", "not-a-number")

	cfg := Load()
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.ReauthTTL != 5*time.Minute {
		t.Errorf("ReauthTTL = %v, want 5m", cfg.ReauthTTL)
	}
	if cfg.RateLimitPerMin != 10 {
		t.Errorf("RateLimitPerMin = %d, want 10", cfg.RateLimitPerMin)
	}
	if cfg.SessionMaxAge != 86400*7 {
		t.Errorf("SessionMaxAge = %d, want fallback", cfg.SessionMaxAge)
	}
}

func TestDurationEnvInvalid(t *testing.T) {
	t.Setenv("REAUTH_TTL", "soon")
	cfg := Load()
	if cfg.ReauthTTL != 15*time.Minute {
		t.Errorf("ReauthTTL = %v, want fallback", cfg.ReauthTTL)
	}
}
