// Package query builds remote-dialect query text from validated
// selection values. All builders are pure: they validate up front,
// return specs by value, and never touch shared state, so concurrent
// use for independent specs is safe by construction.
package query

import (
	"fmt"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// BuildBoundingBox selects the variable plus coordinate columns,
// constrained by the conjunction of closed-interval predicates on
// lat, lon, time and (optionally) depth.
func BuildBoundingBox(table, variable string, lat, lon model.Range, tr model.TimeRange, depth *model.Range) (model.QuerySpec, error) {
	if table == "" {
		return model.QuerySpec{}, fmt.Errorf("table is required")
	}
	if variable == "" {
		return model.QuerySpec{}, fmt.Errorf("variable is required")
	}
	if err := checkAxes(lat, lon, tr, depth); err != nil {
		return model.QuerySpec{}, err
	}
	return model.QuerySpec{
		Table:     table,
		Variables: []string{variable},
		Lat:       lat,
		Lon:       lon,
		Time:      tr,
		Depth:     copyRange(depth),
		Mode:      model.AggRaw,
	}, nil
}

// BuildCenterTolerance is the |axis - center| <= tolerance form of
// BuildBoundingBox. A negative tolerance on any axis fails with
// ErrInvalidRange.
func BuildCenterTolerance(table, variable string, lat, lon model.Span, ts model.TimeSpan, depth *model.Span) (model.QuerySpec, error) {
	for _, s := range []struct {
		axis string
		tol  float64
	}{{"lat", lat.Tolerance}, {"lon", lon.Tolerance}} {
		if s.tol < 0 {
			return model.QuerySpec{}, fmt.Errorf("%s tolerance %g: %w", s.axis, s.tol, model.ErrInvalidRange)
		}
	}
	if ts.Tolerance < 0 {
		return model.QuerySpec{}, fmt.Errorf("time tolerance %s: %w", ts.Tolerance, model.ErrInvalidRange)
	}
	var depthRange *model.Range
	if depth != nil {
		if depth.Tolerance < 0 {
			return model.QuerySpec{}, fmt.Errorf("depth tolerance %g: %w", depth.Tolerance, model.ErrInvalidRange)
		}
		r := depth.Range()
		depthRange = &r
	}
	return BuildBoundingBox(table, variable, lat.Range(), lon.Range(), ts.Range(), depthRange)
}

func checkAxes(lat, lon model.Range, tr model.TimeRange, depth *model.Range) error {
	if !lat.Valid() {
		return fmt.Errorf("lat %s: %w", lat, model.ErrInvalidRange)
	}
	if !lon.Valid() {
		return fmt.Errorf("lon %s: %w", lon, model.ErrInvalidRange)
	}
	if !tr.Valid() {
		return fmt.Errorf("time [%s, %s]: %w", tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02"), model.ErrInvalidRange)
	}
	if depth != nil && !depth.Valid() {
		return fmt.Errorf("depth %s: %w", *depth, model.ErrInvalidRange)
	}
	return nil
}

func copyRange(r *model.Range) *model.Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
