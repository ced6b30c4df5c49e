// Package server wires the HTTP surface and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/config"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/health"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/middleware"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/router"
)

// Run sets up http and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h *router.Handlers) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(h.Catalog))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/catalog", h.HandleCatalog)
	r.Post("/catalog/refresh", h.HandleCatalogRefresh)
	r.Get("/catalog/search", h.HandleSearch)
	r.Get("/catalog/{table}", h.HandleDescribe)

	r.Get("/query", h.HandleQuery)
	r.Get("/estimate", h.HandleEstimate)
	r.Post("/query/manual", h.HandleManualQuery)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// full fetches can run for minutes; the write timeout has to
		// outlive the fetch deadline
		WriteTimeout: cfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
