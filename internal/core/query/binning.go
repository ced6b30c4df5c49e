package query

import (
	"fmt"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// ApplySpatialBinning rewrites the lat/lon grouping keys of a
// space-time spec into regular bins of the given width. Offset shifts
// the bin edges and defaults to width/2; the emitted group label is
// always the bin center. Returns a new spec; the input is not mutated.
func ApplySpatialBinning(spec model.QuerySpec, width float64, offset ...float64) (model.QuerySpec, error) {
	if width <= 0 {
		return model.QuerySpec{}, fmt.Errorf("bin width %g: %w", width, model.ErrInvalidRange)
	}
	if spec.Mode != model.AggSpaceTime && spec.Mode != model.AggCustomGroup {
		return model.QuerySpec{}, fmt.Errorf("spatial binning requires grouped lat/lon (mode %s)", spec.Mode)
	}
	off := width / 2
	if len(offset) > 0 {
		off = offset[0]
	}
	spec.SpatialBin = &model.SpatialBin{Width: width, Offset: off}
	return spec, nil
}

// ApplyTemporalBinning rewrites the time grouping key of a time-series
// spec into bins of widthDays whole days counted from reference. The
// integer day-offset form is deliberate: grouping on year plus
// fractional day-of-year drifts across leap years.
func ApplyTemporalBinning(spec model.QuerySpec, widthDays int, reference time.Time) (model.QuerySpec, error) {
	if widthDays <= 0 {
		return model.QuerySpec{}, fmt.Errorf("bin width %d days: %w", widthDays, model.ErrInvalidRange)
	}
	if reference.IsZero() {
		return model.QuerySpec{}, fmt.Errorf("temporal binning needs a reference date")
	}
	if spec.Mode != model.AggTimeSeries && spec.Mode != model.AggCustomGroup {
		return model.QuerySpec{}, fmt.Errorf("temporal binning requires grouped time (mode %s)", spec.Mode)
	}
	spec.TemporalBin = &model.TemporalBin{WidthDays: widthDays, Reference: reference.UTC()}
	return spec, nil
}
