package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.App.Port)
	}
	if cfg.JWT.AccessTokenTTL != time.Hour {
		t.Fatalf("expected 60 minute access token ttl, got %v", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Pagination.MaxPerPage != 100 || cfg.Pagination.DefaultPerPage != 100 {
		t.Fatalf("unexpected pagination defaults: %+v", cfg.Pagination)
	}
	if cfg.Denylist.Backend != "redis" {
		t.Fatalf("expected redis denylist by default, got %q", cfg.Denylist.Backend)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("VETFLOW_APP_PORT", "9000")
	t.Setenv("VETFLOW_JWT_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("DENYLIST_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected port from env, got %d", cfg.App.Port)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m access ttl, got %v", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Denylist.Backend != "memory" {
		t.Fatalf("expected unprefixed env to be honoured, got %q", cfg.Denylist.Backend)
	}
}

func TestLoadRejectsUnknownDenylistBackend(t *testing.T) {
	t.Setenv("VETFLOW_DENYLIST_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadRejectsUnknownDegradationMode(t *testing.T) {
	t.Setenv("VETFLOW_DENYLIST_DEGRADATION", "fail-open")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown degradation mode")
	}
}

func TestLoadRequiresCursorSecretInProduction(t *testing.T) {
	t.Setenv("VETFLOW_APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when cursor secret is left at its default")
	}
}
