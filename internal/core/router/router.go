// Package router parses API requests and drives the query pipeline.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/catalog"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/normalize"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/observability"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/preflight"
)

// QueryRunner matches executor.Executor; injected for tests.
type QueryRunner interface {
	Execute(ctx context.Context, queryText string) (model.RawResult, error)
}

type Handlers struct {
	Logger   *slog.Logger
	Catalog  *catalog.Index
	Pipeline *preflight.Pipeline
	Exec     QueryRunner

	// FetchTimeout bounds the full data fetch; estimate and catalog
	// calls use the tighter RequestTimeout.
	FetchTimeout   time.Duration
	RequestTimeout time.Duration
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) observe(r *http.Request, route string, sw *statusWriter, start time.Time) {
	observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
}

// HandleQuery runs the estimate-guarded pipeline for a selection request.
func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/query", sw, start)

	spec, err := ParseSelectionRequest(r)
	if err != nil {
		writeError(sw, err)
		return
	}
	if err := h.validateSpec(r.Context(), spec); err != nil {
		writeError(sw, err)
		return
	}

	ctx, cancel := h.deadline(r.Context(), h.FetchTimeout)
	defer cancel()
	res, err := h.Pipeline.Run(ctx, spec)
	if err != nil {
		writeError(sw, err)
		return
	}
	writeResult(sw, res)
}

// HandleEstimate runs only the count-only preflight for a selection.
func (h *Handlers) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/estimate", sw, start)

	spec, err := ParseSelectionRequest(r)
	if err != nil {
		writeError(sw, err)
		return
	}
	if err := h.validateSpec(r.Context(), spec); err != nil {
		writeError(sw, err)
		return
	}

	ctx, cancel := h.deadline(r.Context(), h.RequestTimeout)
	defer cancel()
	est, err := h.Pipeline.Estimator().EstimateRowCount(ctx, spec)
	if err != nil {
		writeError(sw, err)
		return
	}
	vol := preflight.ClassifyVolume(est.TotalRows, h.Pipeline.Threshold)
	writeJSON(sw, http.StatusOK, map[string]any{
		"total_rows":     est.TotalRows,
		"non_null_rows":  est.NonNullRows,
		"null_rows":      est.NullRows(),
		"classification": vol.String(),
	})
}

type manualRequest struct {
	Query string `json:"query"`
}

// HandleManualQuery executes free-text query text under the read-only
// guard and returns the normalized result. No preflight runs here: the
// caller asked for exactly this text.
func (h *Handlers) HandleManualQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/query/manual", sw, start)

	var req manualRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(sw, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(sw, errors.New("invalid body: want {\"query\": \"...\"}"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(sw, errors.New("query text is required"))
		return
	}

	ctx, cancel := h.deadline(r.Context(), h.FetchTimeout)
	defer cancel()
	raw, err := h.Exec.Execute(ctx, req.Query)
	if err != nil {
		writeError(sw, err)
		return
	}
	writeResult(sw, normalize.Normalize(raw))
}

// HandleCatalog lists the full flattened catalog.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/catalog", sw, start)

	snap := h.Catalog.Snapshot()
	if snap == nil {
		writeError(sw, model.ErrRemoteUnavailable)
		return
	}
	writeJSON(sw, http.StatusOK, map[string]any{
		"fingerprint": snap.Fingerprint,
		"fetched_at":  snap.FetchedAt,
		"rows":        snap.Rows(),
	})
}

// HandleCatalogRefresh re-fetches the catalog on demand.
func (h *Handlers) HandleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/catalog/refresh", sw, start)

	ctx, cancel := h.deadline(r.Context(), h.RequestTimeout)
	defer cancel()
	if err := h.Catalog.Fetch(ctx); err != nil {
		writeError(sw, err)
		return
	}
	snap := h.Catalog.Snapshot()
	writeJSON(sw, http.StatusOK, map[string]any{
		"fingerprint": snap.Fingerprint,
		"fetched_at":  snap.FetchedAt,
		"tables":      len(snap.Tables),
	})
}

// HandleSearch pattern-matches catalog rows.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/catalog/search", sw, start)

	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		writeError(sw, errors.New("missing required parameter: q"))
		return
	}
	fields := searchFields(r.URL.Query().Get("fields"))

	ctx, cancel := h.deadline(r.Context(), h.RequestTimeout)
	defer cancel()
	rows, err := h.Catalog.Search(ctx, keyword, fields...)
	if err != nil {
		writeError(sw, err)
		return
	}
	writeJSON(sw, http.StatusOK, map[string]any{"matches": len(rows), "rows": rows})
}

func searchFields(param string) []string {
	switch strings.TrimSpace(param) {
	case "", "default":
		return nil
	case "expanded":
		return catalog.ExpandedSearchFields
	default:
		return splitVars(param)
	}
}

// HandleDescribe summarizes one table and lists its variables.
func (h *Handlers) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer h.observe(r, "/catalog/{table}", sw, start)

	table := chi.URLParam(r, "table")
	ctx, cancel := h.deadline(r.Context(), h.RequestTimeout)
	defer cancel()

	summary, err := h.Catalog.Describe(ctx, table)
	if err != nil {
		writeError(sw, err)
		return
	}
	vars, err := h.Catalog.TableVariables(ctx, table)
	if err != nil {
		writeError(sw, err)
		return
	}
	names := make([]map[string]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, map[string]string{
			"variable":  v.Name,
			"long_name": v.LongName,
			"unit":      v.Unit,
		})
	}
	writeJSON(sw, http.StatusOK, map[string]any{"table": summary, "variables": names})
}

func (h *Handlers) validateSpec(ctx context.Context, spec model.QuerySpec) error {
	vctx, cancel := h.deadline(ctx, h.RequestTimeout)
	defer cancel()
	for _, v := range spec.Variables {
		if err := h.Catalog.CheckColumn(vctx, spec.Table, v); err != nil {
			return err
		}
	}
	for _, k := range spec.GroupKeys {
		if err := h.Catalog.CheckColumn(vctx, spec.Table, k.Column); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func writeResult(w http.ResponseWriter, res model.QueryResult) {
	rows := make([][]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec := make([]any, len(res.Columns))
		for i, col := range res.Columns {
			rec[i] = valueJSON(row[col])
		}
		rows = append(rows, rec)
	}
	out := map[string]any{
		"columns":       res.Columns,
		"rows":          rows,
		"rows_returned": res.RowsReturned,
	}
	if res.RowsEstimated != nil {
		out["rows_estimated"] = *res.RowsEstimated
	}
	writeJSON(w, http.StatusOK, out)
}

func valueJSON(v model.Value) any {
	switch v.Kind {
	case model.KindNumber:
		return v.Number
	case model.KindText:
		return v.Text
	case model.KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Every failure
// reaches the caller typed; nothing is swallowed.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, model.ErrUnknownTable), errors.Is(err, model.ErrUnknownColumn):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, model.ErrForbiddenStatement):
		status = http.StatusBadRequest
	case errors.Is(err, preflight.ErrVolumeExceeded):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, model.ErrRemoteUnavailable), errors.Is(err, model.ErrMalformedResponse):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
