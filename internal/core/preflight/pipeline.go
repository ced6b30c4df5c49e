package preflight

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/normalize"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/observability"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/query"
)

// Pipeline drives one query through its lifecycle: built spec in,
// estimate, execute, normalize. A failure at any stage yields no
// partial result, and a failed preflight blocks the fetch entirely.
type Pipeline struct {
	logger *slog.Logger
	est    *Estimator
	exec   QueryRunner

	// Threshold grades estimates; zero disables classification.
	Threshold int64
	// EnforceAbort turns the advisory abort classification into a hard
	// stop before the fetch.
	EnforceAbort bool
}

func NewPipeline(logger *slog.Logger, exec QueryRunner, threshold int64, enforceAbort bool) *Pipeline {
	return &Pipeline{
		logger:       logger,
		est:          NewEstimator(logger, exec),
		exec:         exec,
		Threshold:    threshold,
		EnforceAbort: enforceAbort,
	}
}

// Estimator exposes the underlying estimator for estimate-only callers.
func (p *Pipeline) Estimator() *Estimator { return p.est }

// Run executes the estimate-guarded pipeline for a built spec and
// returns the normalized result with the estimate attached.
func (p *Pipeline) Run(ctx context.Context, spec model.QuerySpec) (model.QueryResult, error) {
	est, err := p.est.EstimateRowCount(ctx, spec)
	if err != nil {
		return model.QueryResult{}, err
	}

	vol := ClassifyVolume(est.TotalRows, p.Threshold)
	observability.ObservePreflight(vol.String(), est.TotalRows)
	switch vol {
	case VolumeWarn:
		p.logger.Warn("large transfer ahead",
			"table", spec.Table,
			"estimated_rows", est.TotalRows,
			"threshold", p.Threshold)
	case VolumeAbort:
		p.logger.Warn("transfer volume classified abort",
			"table", spec.Table,
			"estimated_rows", est.TotalRows,
			"threshold", p.Threshold,
			"enforced", p.EnforceAbort)
		if p.EnforceAbort {
			return model.QueryResult{}, fmt.Errorf("%d rows estimated, threshold %d: %w",
				est.TotalRows, p.Threshold, ErrVolumeExceeded)
		}
	}

	text, err := query.Render(spec)
	if err != nil {
		return model.QueryResult{}, err
	}
	raw, err := p.exec.Execute(ctx, text)
	if err != nil {
		return model.QueryResult{}, err
	}

	res := normalize.Normalize(raw)
	total := est.TotalRows
	res.RowsEstimated = &total
	return res, nil
}
