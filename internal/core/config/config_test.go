package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"ADDR", "LOG_LEVEL", "REMOTE_API_URL", "API_KEY",
		"REQUEST_TIMEOUT", "FETCH_TIMEOUT",
		"PREFLIGHT_THRESHOLD", "PREFLIGHT_ENFORCE",
		"CATALOG_REFRESH", "REDIS_ADDR", "SNAPSHOT_TTL",
	} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Addr != ":8090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.FetchTimeout != 10*time.Minute {
		t.Fatalf("timeouts = %s, %s", cfg.RequestTimeout, cfg.FetchTimeout)
	}
	if cfg.PreflightThreshold != 1_000_000 || !cfg.PreflightEnforce {
		t.Fatalf("preflight = %d enforce %v", cfg.PreflightThreshold, cfg.PreflightEnforce)
	}
	if cfg.CatalogRefresh != 0 || cfg.RedisAddr != "" {
		t.Fatalf("refresh = %s redis = %q", cfg.CatalogRefresh, cfg.RedisAddr)
	}
	if cfg.SnapshotTTL != 24*time.Hour {
		t.Fatalf("snapshot ttl = %s", cfg.SnapshotTTL)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("REMOTE_API_URL", "https://cmap.example.org/api/query")
	t.Setenv("API_KEY", "k123")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("PREFLIGHT_THRESHOLD", "5000")
	t.Setenv("PREFLIGHT_ENFORCE", "false")
	t.Setenv("CATALOG_REFRESH", "1h")

	cfg := FromEnv()
	if cfg.Addr != ":9000" || cfg.APIKey != "k123" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RemoteURL != "https://cmap.example.org/api/query" {
		t.Fatalf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.RequestTimeout != 5*time.Second || cfg.CatalogRefresh != time.Hour {
		t.Fatalf("durations = %s, %s", cfg.RequestTimeout, cfg.CatalogRefresh)
	}
	if cfg.PreflightThreshold != 5000 || cfg.PreflightEnforce {
		t.Fatalf("preflight = %d enforce %v", cfg.PreflightThreshold, cfg.PreflightEnforce)
	}
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("PREFLIGHT_THRESHOLD", "lots")
	t.Setenv("PREFLIGHT_ENFORCE", "maybe")

	cfg := FromEnv()
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.PreflightThreshold != 1_000_000 {
		t.Fatalf("PreflightThreshold = %d", cfg.PreflightThreshold)
	}
	if !cfg.PreflightEnforce {
		t.Fatalf("PreflightEnforce fell to false")
	}
}
