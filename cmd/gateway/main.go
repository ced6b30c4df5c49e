package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/catalog"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/catalog/redisstore"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/config"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/executor"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/httpclient"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/observability"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/preflight"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/router"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/server"
	"github.com/mohammed-shakir/spacetime-gateway/internal/logger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "gateway",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting gateway",
		"addr", cfg.Addr,
		"version", Version,
		"remote", cfg.RemoteURL)

	if cfg.APIKey == "" {
		appLog.Warn("API_KEY is empty; remote calls will likely be rejected")
	}

	client := httpclient.NewOutbound(cfg.APIKey)
	exec, err := executor.New(appLog, client, cfg.RemoteURL)
	if err != nil {
		appLog.Error("executor init failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store catalog.SnapshotStore
	if cfg.RedisAddr != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rs, err := redisstore.New(rctx, cfg.RedisAddr, cfg.SnapshotTTL)
		cancel()
		if err != nil {
			appLog.Warn("snapshot store unavailable, continuing without it", "err", err)
		} else {
			store = rs
			defer func() { _ = rs.Close() }()
		}
	}

	ix := catalog.New(appLog, exec, store)
	wctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	err = ix.WarmStart(wctx)
	cancel()
	if err != nil {
		// serve anyway: /readyz stays not-ready until a refresh succeeds
		appLog.Warn("catalog load failed at boot", "err", err)
	}

	if cfg.CatalogRefresh > 0 {
		go refreshLoop(ctx, appLog, ix, cfg)
	}

	pipe := preflight.NewPipeline(appLog, exec, cfg.PreflightThreshold, cfg.PreflightEnforce)
	handlers := &router.Handlers{
		Logger:         appLog,
		Catalog:        ix,
		Pipeline:       pipe,
		Exec:           exec,
		FetchTimeout:   cfg.FetchTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}

	if err := server.Run(ctx, cfg, appLog, handlers); err != nil {
		appLog.Error("server exited", "err", err)
		return 1
	}
	return 0
}

func refreshLoop(ctx context.Context, log *slog.Logger, ix *catalog.Index, cfg config.Config) {
	t := time.NewTicker(cfg.CatalogRefresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			if err := ix.Fetch(fctx); err != nil {
				log.Warn("catalog refresh failed", "err", err)
			}
			cancel()
		}
	}
}
