// Package preflight runs count-only variants of a spec before any
// potentially large transfer. The remote side never refuses large
// requests on its own, so this estimate is the only safeguard against
// unbounded transfer.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/normalize"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/query"
)

// ErrVolumeExceeded is returned by Pipeline.Run when the estimate
// classifies as abort and abort enforcement is on.
var ErrVolumeExceeded = errors.New("estimated transfer volume exceeds abort threshold")

// QueryRunner is the executing dependency; satisfied by executor.Executor.
type QueryRunner interface {
	Execute(ctx context.Context, queryText string) (model.RawResult, error)
}

// Estimate is the outcome of one count-only query.
type Estimate struct {
	TotalRows   int64 // count(*)
	NonNullRows int64 // count(variable)
}

// NullRows is the independent null count carried by the two columns.
func (e Estimate) NullRows() int64 { return e.TotalRows - e.NonNullRows }

type Estimator struct {
	logger *slog.Logger
	exec   QueryRunner
}

func NewEstimator(logger *slog.Logger, exec QueryRunner) *Estimator {
	return &Estimator{logger: logger, exec: exec}
}

// EstimateRowCount executes the count-only variant of the spec: same
// interval predicates, count(*) and count(variable) instead of data
// columns. The full data query never runs here.
func (e *Estimator) EstimateRowCount(ctx context.Context, spec model.QuerySpec) (Estimate, error) {
	text, err := query.RenderCount(spec)
	if err != nil {
		return Estimate{}, err
	}
	raw, err := e.exec.Execute(ctx, text)
	if err != nil {
		return Estimate{}, fmt.Errorf("preflight: %w", err)
	}
	res := normalize.Normalize(raw)
	if len(res.Rows) != 1 {
		return Estimate{}, fmt.Errorf("preflight returned %d rows, want 1: %w", len(res.Rows), model.ErrMalformedResponse)
	}

	est, err := readEstimate(res, spec.Variable())
	if err != nil {
		return Estimate{}, err
	}
	e.logger.Debug("preflight estimate",
		"table", spec.Table,
		"variable", spec.Variable(),
		"total_rows", est.TotalRows,
		"non_null_rows", est.NonNullRows)
	return est, nil
}

func readEstimate(res model.QueryResult, variable string) (Estimate, error) {
	row := res.Rows[0]
	total, ok := numberAt(row, res.Columns, "n_total", 0)
	if !ok {
		return Estimate{}, fmt.Errorf("preflight row missing total count: %w", model.ErrMalformedResponse)
	}
	nonNull, ok := numberAt(row, res.Columns, variable+"_count", 1)
	if !ok {
		return Estimate{}, fmt.Errorf("preflight row missing variable count: %w", model.ErrMalformedResponse)
	}
	return Estimate{TotalRows: int64(total), NonNullRows: int64(nonNull)}, nil
}

// numberAt reads a numeric cell by column name, falling back to the
// positional column for responses with synthesized names.
func numberAt(row model.Row, cols []string, name string, pos int) (float64, bool) {
	if v, ok := row[name]; ok && v.Kind == model.KindNumber {
		return v.Number, true
	}
	if pos < len(cols) {
		if v, ok := row[cols[pos]]; ok && v.Kind == model.KindNumber {
			return v.Number, true
		}
	}
	return 0, false
}
