// Package config reads gateway configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	// RemoteURL is the query endpoint of the remote dataset service.
	RemoteURL string
	// APIKey is the per-session credential attached to every remote call.
	APIKey string

	// RequestTimeout bounds one remote round trip for catalog and
	// preflight calls. Full data fetches use FetchTimeout, which is
	// long on purpose: wide bounding boxes can run for minutes.
	RequestTimeout time.Duration
	FetchTimeout   time.Duration

	// PreflightThreshold grades row-count estimates; estimates above
	// AbortFactor times this classify as abort. Zero disables grading.
	PreflightThreshold int64
	// PreflightEnforce turns the abort classification into a hard stop.
	PreflightEnforce bool

	// CatalogRefresh is the background refresh interval; zero means
	// refresh only on demand.
	CatalogRefresh time.Duration

	// RedisAddr enables the shared snapshot store when non-empty.
	RedisAddr   string
	SnapshotTTL time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:               getenv("ADDR", ":8090"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		RemoteURL:          getenv("REMOTE_API_URL", "https://localhost:8443/api/query"),
		APIKey:             getenv("API_KEY", ""),
		RequestTimeout:     getduration("REQUEST_TIMEOUT", 30*time.Second),
		FetchTimeout:       getduration("FETCH_TIMEOUT", 10*time.Minute),
		PreflightThreshold: getint64("PREFLIGHT_THRESHOLD", 1_000_000),
		PreflightEnforce:   getbool("PREFLIGHT_ENFORCE", true),
		CatalogRefresh:     getduration("CATALOG_REFRESH", 0),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		SnapshotTTL:        getduration("SNAPSHOT_TTL", 24*time.Hour),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
