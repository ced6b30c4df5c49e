// Package executor sends validated read-only query text to the remote
// dataset service and returns its tabular response untyped.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/observability"
)

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	queryURL *url.URL
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, endpoint string) (*Executor, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse query endpoint: %w", err)
	}
	return &Executor{
		logger:   logger,
		client:   client,
		queryURL: u,
		startNow: time.Now,
	}, nil
}

type queryEnvelope struct {
	Query string `json:"query"`
}

// Execute sends query text verbatim and returns the raw tabular rows.
// The text passes the read-only guard first; one blocking round trip,
// no internal retry. The request context is the cancellation hook
// between submission and result materialization.
func (e *Executor) Execute(ctx context.Context, queryText string) (model.RawResult, error) {
	if err := CheckReadOnly(queryText); err != nil {
		return model.RawResult{}, err
	}

	body, err := json.Marshal(queryEnvelope{Query: queryText})
	if err != nil {
		return model.RawResult{}, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.queryURL.String(), bytes.NewReader(body))
	if err != nil {
		return model.RawResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/csv")

	start := e.startNow()
	e.logger.Debug("execute query", "endpoint", e.queryURL.String(), "bytes", len(body))

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.RawResult{}, fmt.Errorf("execute: %w", model.ErrTimeout)
		}
		if errors.Is(err, context.Canceled) {
			return model.RawResult{}, fmt.Errorf("execute: %w", err)
		}
		return model.RawResult{}, fmt.Errorf("execute: %v: %w", err, model.ErrRemoteUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("query", dur.Seconds())
	e.logger.Debug("execute done", "status", resp.StatusCode, "duration", dur.String())

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn("upstream error", "status", resp.StatusCode, "body", string(snippet))
		return model.RawResult{}, fmt.Errorf("upstream status %d: %w", resp.StatusCode, model.ErrRemoteUnavailable)
	}

	raw, err := parseResponse(resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.RawResult{}, fmt.Errorf("read response: %w", model.ErrTimeout)
		}
		return model.RawResult{}, err
	}
	return raw, nil
}
