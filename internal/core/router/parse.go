package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
	"github.com/mohammed-shakir/spacetime-gateway/internal/core/query"
)

// Selection parameters come in two spatial forms: explicit min/max
// bounds (latMin/latMax, ...) or center plus tolerance (lat/latTol).
// Mixing the two on one request is rejected.

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseTimeParam(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC3339 or YYYY-MM-DD)", s)
}

// ParseSelectionRequest turns URL query parameters into a built,
// validated QuerySpec.
func ParseSelectionRequest(r *http.Request) (model.QuerySpec, error) {
	q := r.URL.Query()

	table := strings.TrimSpace(q.Get("table"))
	if table == "" {
		return model.QuerySpec{}, errors.New("missing required parameter: table")
	}
	variable := strings.TrimSpace(q.Get("variable"))
	if variable == "" {
		return model.QuerySpec{}, errors.New("missing required parameter: variable")
	}

	mode := model.AggMode(strings.TrimSpace(q.Get("agg")))
	if mode == "" {
		mode = model.AggRaw
	}

	spec, err := buildSelection(q, table, variable, mode)
	if err != nil {
		return model.QuerySpec{}, err
	}

	if v := q.Get("binWidth"); v != "" {
		width, err := parseFloatParam("binWidth", v)
		if err != nil {
			return model.QuerySpec{}, err
		}
		if off := q.Get("binOffset"); off != "" {
			offset, err := parseFloatParam("binOffset", off)
			if err != nil {
				return model.QuerySpec{}, err
			}
			spec, err = query.ApplySpatialBinning(spec, width, offset)
			if err != nil {
				return model.QuerySpec{}, err
			}
		} else if spec, err = query.ApplySpatialBinning(spec, width); err != nil {
			return model.QuerySpec{}, err
		}
	}

	if v := q.Get("binDays"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return model.QuerySpec{}, fmt.Errorf("binDays: %w", err)
		}
		ref := q.Get("binRef")
		if ref == "" {
			return model.QuerySpec{}, errors.New("binDays requires binRef (reference date)")
		}
		refT, err := parseTimeParam(ref)
		if err != nil {
			return model.QuerySpec{}, fmt.Errorf("binRef: %w", err)
		}
		spec, err = query.ApplyTemporalBinning(spec, days, refT)
		if err != nil {
			return model.QuerySpec{}, err
		}
	}

	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return model.QuerySpec{}, fmt.Errorf("top: not a non-negative integer: %q", v)
		}
		spec.Top = n
	}
	if strings.EqualFold(q.Get("sample"), "true") {
		if spec.Mode != model.AggRaw {
			return model.QuerySpec{}, errors.New("sample applies to raw selections only")
		}
		spec.RandomSample = true
	}

	return spec, nil
}

func buildSelection(q urlValues, table, variable string, mode model.AggMode) (model.QuerySpec, error) {
	centerForm := q.Get("lat") != "" || q.Get("lon") != ""
	boundsForm := q.Get("latMin") != "" || q.Get("latMax") != ""
	if centerForm && boundsForm {
		return model.QuerySpec{}, errors.New("use either min/max bounds or center+tolerance, not both")
	}

	if centerForm {
		return buildCenterSelection(q, table, variable, mode)
	}
	return buildBoundsSelection(q, table, variable, mode)
}

func buildBoundsSelection(q urlValues, table, variable string, mode model.AggMode) (model.QuerySpec, error) {
	lat, err := parseRange(q, "latMin", "latMax")
	if err != nil {
		return model.QuerySpec{}, err
	}
	lon, err := parseRange(q, "lonMin", "lonMax")
	if err != nil {
		return model.QuerySpec{}, err
	}
	tr, err := parseTimeRange(q, "timeStart", "timeEnd")
	if err != nil {
		return model.QuerySpec{}, err
	}
	depth, err := parseOptionalRange(q, "depthMin", "depthMax")
	if err != nil {
		return model.QuerySpec{}, err
	}

	switch mode {
	case model.AggRaw:
		spec, err := query.BuildBoundingBox(table, variable, lat, lon, tr, depth)
		if err != nil {
			return model.QuerySpec{}, err
		}
		spec.Variables = splitVars(variable)
		return spec, nil
	case model.AggDepthProfile:
		if depth == nil {
			return model.QuerySpec{}, errors.New("depth profile requires depthMin and depthMax")
		}
		return query.BuildDepthProfile(table, variable, lat, lon, tr, *depth)
	case model.AggTimeSeries:
		return query.BuildTimeSeries(table, variable, lat, lon, tr, depth)
	case model.AggSpaceTime:
		return query.BuildSpaceTime(table, variable, lat, lon, tr, depth)
	case model.AggCustomGroup:
		keys, err := parseGroupKeys(q.Get("group"))
		if err != nil {
			return model.QuerySpec{}, err
		}
		return query.BuildCustomGroup(table, variable, lat, lon, tr, depth, keys)
	default:
		return model.QuerySpec{}, fmt.Errorf("unknown aggregation mode %q", mode)
	}
}

func buildCenterSelection(q urlValues, table, variable string, mode model.AggMode) (model.QuerySpec, error) {
	if mode != model.AggRaw {
		return model.QuerySpec{}, errors.New("center+tolerance selections support raw mode only; use min/max bounds for aggregations")
	}
	lat, err := parseSpan(q, "lat", "latTol")
	if err != nil {
		return model.QuerySpec{}, err
	}
	lon, err := parseSpan(q, "lon", "lonTol")
	if err != nil {
		return model.QuerySpec{}, err
	}

	tc := q.Get("timeCenter")
	tt := q.Get("timeTol")
	if tc == "" || tt == "" {
		return model.QuerySpec{}, errors.New("center+tolerance selections require timeCenter and timeTol")
	}
	center, err := parseTimeParam(tc)
	if err != nil {
		return model.QuerySpec{}, fmt.Errorf("timeCenter: %w", err)
	}
	tol, err := time.ParseDuration(tt)
	if err != nil {
		return model.QuerySpec{}, fmt.Errorf("timeTol: %w", err)
	}

	var depth *model.Span
	if q.Get("depth") != "" || q.Get("depthTol") != "" {
		d, err := parseSpan(q, "depth", "depthTol")
		if err != nil {
			return model.QuerySpec{}, err
		}
		depth = &d
	}

	spec, err := query.BuildCenterTolerance(table, variable, lat, lon, model.TimeSpan{Center: center, Tolerance: tol}, depth)
	if err != nil {
		return model.QuerySpec{}, err
	}
	spec.Variables = splitVars(variable)
	return spec, nil
}

// urlValues narrows url.Values to what the parsers need.
type urlValues interface {
	Get(key string) string
}

func parseFloatParam(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number: %q", name, v)
	}
	return f, nil
}

func parseRange(q urlValues, minKey, maxKey string) (model.Range, error) {
	minV, maxV := q.Get(minKey), q.Get(maxKey)
	if minV == "" || maxV == "" {
		return model.Range{}, fmt.Errorf("missing required parameters: %s, %s", minKey, maxKey)
	}
	lo, err := parseFloatParam(minKey, minV)
	if err != nil {
		return model.Range{}, err
	}
	hi, err := parseFloatParam(maxKey, maxV)
	if err != nil {
		return model.Range{}, err
	}
	return model.Range{Min: lo, Max: hi}, nil
}

func parseOptionalRange(q urlValues, minKey, maxKey string) (*model.Range, error) {
	if q.Get(minKey) == "" && q.Get(maxKey) == "" {
		return nil, nil
	}
	r, err := parseRange(q, minKey, maxKey)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func parseTimeRange(q urlValues, startKey, endKey string) (model.TimeRange, error) {
	sv, ev := q.Get(startKey), q.Get(endKey)
	if sv == "" || ev == "" {
		return model.TimeRange{}, fmt.Errorf("missing required parameters: %s, %s", startKey, endKey)
	}
	start, err := parseTimeParam(sv)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("%s: %w", startKey, err)
	}
	end, err := parseTimeParam(ev)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("%s: %w", endKey, err)
	}
	return model.TimeRange{Start: start, End: end}, nil
}

func parseSpan(q urlValues, centerKey, tolKey string) (model.Span, error) {
	cv, tv := q.Get(centerKey), q.Get(tolKey)
	if cv == "" || tv == "" {
		return model.Span{}, fmt.Errorf("missing required parameters: %s, %s", centerKey, tolKey)
	}
	center, err := parseFloatParam(centerKey, cv)
	if err != nil {
		return model.Span{}, err
	}
	tol, err := parseFloatParam(tolKey, tv)
	if err != nil {
		return model.Span{}, err
	}
	return model.Span{Center: center, Tolerance: tol}, nil
}

func splitVars(variable string) []string {
	parts := strings.Split(variable, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseGroupKeys reads the group parameter: a comma-separated list of
// col, round:col:digits, or floor:col entries.
func parseGroupKeys(s string) ([]model.GroupKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("custom_group requires the group parameter")
	}
	var keys []model.GroupKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		switch {
		case len(fields) == 1:
			keys = append(keys, model.GroupKey{Column: fields[0]})
		case fields[0] == "floor" && len(fields) == 2:
			keys = append(keys, model.GroupKey{Column: fields[1], Floor: true})
		case fields[0] == "round" && len(fields) == 3:
			digits, err := strconv.Atoi(fields[2])
			if err != nil || digits < 0 {
				return nil, fmt.Errorf("group %q: digits must be a non-negative integer", part)
			}
			keys = append(keys, model.GroupKey{Column: fields[1], Round: &digits})
		default:
			return nil, fmt.Errorf("group %q: want col, round:col:digits or floor:col", part)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("custom_group requires at least one group key")
	}
	return keys, nil
}
