// Package model defines core domain types shared across the gateway.
package model

import (
	"fmt"
	"time"
)

// Range is a closed interval [Min, Max] on one spatial axis.
type Range struct {
	Min, Max float64
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Valid reports whether the interval is well ordered.
func (r Range) Valid() bool { return r.Min <= r.Max }

// TimeRange is a closed interval [Start, End] in time.
type TimeRange struct {
	Start, End time.Time
}

func (t TimeRange) Valid() bool { return !t.Start.After(t.End) }

// Span is a center plus a symmetric tolerance on one spatial axis.
type Span struct {
	Center    float64
	Tolerance float64
}

// Range converts the span to the equivalent closed interval.
func (s Span) Range() Range {
	return Range{Min: s.Center - s.Tolerance, Max: s.Center + s.Tolerance}
}

// TimeSpan is a center instant plus a symmetric tolerance.
type TimeSpan struct {
	Center    time.Time
	Tolerance time.Duration
}

func (s TimeSpan) Range() TimeRange {
	return TimeRange{Start: s.Center.Add(-s.Tolerance), End: s.Center.Add(s.Tolerance)}
}

// AggMode selects the aggregation template pushed to the remote side.
type AggMode string

const (
	AggRaw          AggMode = "raw"
	AggDepthProfile AggMode = "depth_profile"
	AggTimeSeries   AggMode = "time_series"
	AggSpaceTime    AggMode = "space_time"
	AggCustomGroup  AggMode = "custom_group"
)

// SpatialBin rebins lat/lon grouping keys into regular intervals.
// Offset shifts the bin edges; emitted labels are bin centers
// (edge + Width/2).
type SpatialBin struct {
	Width  float64
	Offset float64
}

// Center returns the bin-center label for a coordinate, matching the
// expression the builder pushes to the remote side.
func (b SpatialBin) Center(x float64) float64 {
	shift := b.Offset + b.Width/2
	return roundHalfAway((x-shift)/b.Width)*b.Width + shift
}

// TemporalBin rebins the time grouping key into integer day offsets
// from Reference. Day offsets are used instead of year plus fractional
// day-of-year, which drifts across leap years.
type TemporalBin struct {
	WidthDays int
	Reference time.Time
}

// Offset returns the bin label (in days since Reference) for an instant.
func (b TemporalBin) Offset(t time.Time) int {
	days := daysBetween(b.Reference, t)
	w := float64(b.WidthDays)
	return int(roundHalfAway(float64(days)/w) * w)
}

// GroupKey is one custom grouping expression over a coordinate column.
// At most one of Round/Floor is set; neither means group on the raw column.
type GroupKey struct {
	Column string
	Alias  string
	Round  *int // round(column, n)
	Floor  bool // floor(column)
}

// QuerySpec is a validated selection over one table. Builders return it
// by value; treat it as read-only once built.
type QuerySpec struct {
	Table     string
	Variables []string

	Lat   Range
	Lon   Range
	Time  TimeRange
	Depth *Range // nil for surface-only tables

	Mode        AggMode
	SpatialBin  *SpatialBin
	TemporalBin *TemporalBin
	GroupKeys   []GroupKey // custom_group only

	// Top limits the selection to the first n rows; 0 means no limit.
	Top int
	// RandomSample orders the selection randomly on the remote side
	// before Top applies.
	RandomSample bool
}

// Variable returns the primary variable of the spec.
func (s QuerySpec) Variable() string {
	if len(s.Variables) == 0 {
		return ""
	}
	return s.Variables[0]
}

// RawResult is the untyped tabular payload as returned by the remote
// service, before normalization. Cells are nil, float64, or string.
type RawResult struct {
	Columns []string
	Rows    [][]any
}

// Kind discriminates the typed cell values of a normalized result.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindTime:
		return "timestamp"
	default:
		return "null"
	}
}

// Value is one typed cell of a normalized result.
type Value struct {
	Kind   Kind
	Number float64
	Text   string
	Time   time.Time
}

func Null() Value                 { return Value{Kind: KindNull} }
func Number(f float64) Value      { return Value{Kind: KindNumber, Number: f} }
func Text(s string) Value         { return Value{Kind: KindText, Text: s} }
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the cell carries no value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Row maps column names to typed values.
type Row map[string]Value

// QueryResult is the normalized outcome of one executed query. Row
// order is exactly the order the remote service returned.
type QueryResult struct {
	Columns []string
	Rows    []Row

	// RowsEstimated carries the preflight total-row estimate when a
	// preflight ran for this query; nil otherwise.
	RowsEstimated *int64
	RowsReturned  int
}

func roundHalfAway(x float64) float64 {
	if x < 0 {
		return float64(int64(x - 0.5))
	}
	return float64(int64(x + 0.5))
}

// daysBetween counts whole calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	au := a.UTC()
	bu := b.UTC()
	ad := time.Date(au.Year(), au.Month(), au.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(bu.Year(), bu.Month(), bu.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad) / (24 * time.Hour))
}
