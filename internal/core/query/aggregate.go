package query

import (
	"fmt"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// The aggregation templates extend BuildBoundingBox with remote-side
// grouping: the axis of interest stays a full-resolution grouping key
// while the remaining axes are collapsed into count, mean and sample
// standard deviation of the variable. A count(*) column rides along so
// the null count stays independently derivable downstream.

// BuildDepthProfile groups by depth; lat, lon and time are averaged away.
func BuildDepthProfile(table, variable string, lat, lon model.Range, tr model.TimeRange, depth model.Range) (model.QuerySpec, error) {
	spec, err := BuildBoundingBox(table, variable, lat, lon, tr, &depth)
	if err != nil {
		return model.QuerySpec{}, err
	}
	spec.Mode = model.AggDepthProfile
	return spec, nil
}

// BuildTimeSeries groups by time; lat, lon and depth are averaged away.
func BuildTimeSeries(table, variable string, lat, lon model.Range, tr model.TimeRange, depth *model.Range) (model.QuerySpec, error) {
	spec, err := BuildBoundingBox(table, variable, lat, lon, tr, depth)
	if err != nil {
		return model.QuerySpec{}, err
	}
	spec.Mode = model.AggTimeSeries
	return spec, nil
}

// BuildSpaceTime groups by lat and lon; time and depth are averaged away.
func BuildSpaceTime(table, variable string, lat, lon model.Range, tr model.TimeRange, depth *model.Range) (model.QuerySpec, error) {
	spec, err := BuildBoundingBox(table, variable, lat, lon, tr, depth)
	if err != nil {
		return model.QuerySpec{}, err
	}
	spec.Mode = model.AggSpaceTime
	return spec, nil
}

// BuildCustomGroup groups by arbitrary per-axis expressions (raw
// column, round(col, n) or floor(col)) and filters the variable to
// non-null, so bins with zero non-null observations never appear.
func BuildCustomGroup(table, variable string, lat, lon model.Range, tr model.TimeRange, depth *model.Range, keys []model.GroupKey) (model.QuerySpec, error) {
	if len(keys) == 0 {
		return model.QuerySpec{}, fmt.Errorf("custom grouping needs at least one group key")
	}
	for _, k := range keys {
		if k.Column == "" {
			return model.QuerySpec{}, fmt.Errorf("group key without a column")
		}
		if k.Round != nil && k.Floor {
			return model.QuerySpec{}, fmt.Errorf("group key %q: round and floor are mutually exclusive", k.Column)
		}
	}
	spec, err := BuildBoundingBox(table, variable, lat, lon, tr, depth)
	if err != nil {
		return model.QuerySpec{}, err
	}
	spec.Mode = model.AggCustomGroup
	spec.GroupKeys = append([]model.GroupKey(nil), keys...)
	return spec, nil
}
