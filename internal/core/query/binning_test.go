package query

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

func TestApplySpatialBinning(t *testing.T) {
	spec := baseSpec(model.AggSpaceTime)

	binned, err := ApplySpatialBinning(spec, 2, 0.5)
	if err != nil {
		t.Fatalf("ApplySpatialBinning: %v", err)
	}
	if binned.SpatialBin == nil || binned.SpatialBin.Width != 2 || binned.SpatialBin.Offset != 0.5 {
		t.Fatalf("bin = %+v", binned.SpatialBin)
	}
	if spec.SpatialBin != nil {
		t.Fatalf("input spec mutated")
	}

	// default offset is width/2
	binned, err = ApplySpatialBinning(spec, 2)
	if err != nil {
		t.Fatalf("ApplySpatialBinning default offset: %v", err)
	}
	if binned.SpatialBin.Offset != 1 {
		t.Fatalf("default offset = %g, want 1", binned.SpatialBin.Offset)
	}
}

func TestApplySpatialBinning_Rejections(t *testing.T) {
	if _, err := ApplySpatialBinning(baseSpec(model.AggSpaceTime), 0); !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("zero width: err = %v", err)
	}
	if _, err := ApplySpatialBinning(baseSpec(model.AggSpaceTime), -1); !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("negative width: err = %v", err)
	}
	if _, err := ApplySpatialBinning(baseSpec(model.AggRaw), 2); err == nil {
		t.Fatalf("raw mode accepted")
	}
	if _, err := ApplySpatialBinning(baseSpec(model.AggTimeSeries), 2); err == nil {
		t.Fatalf("time-series mode accepted")
	}
}

// With width 2 and offset 0.5 the bin edges fall on ..., 44.5, 46.5,
// 48.5, ... and each label is the center of its bin.
func TestSpatialBinCenters(t *testing.T) {
	b := model.SpatialBin{Width: 2, Offset: 0.5}
	cases := []struct{ x, want float64 }{
		{45.3, 45.5},
		{46.2, 45.5},
		{47.6, 47.5},
		{44.5, 45.5}, // lower edge belongs to the bin above
		{-0.3, -0.5},
		{-1.7, -2.5},
	}
	for _, c := range cases {
		if got := b.Center(c.x); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Center(%g) = %g, want %g", c.x, got, c.want)
		}
	}
}

func TestApplyTemporalBinning(t *testing.T) {
	spec := baseSpec(model.AggTimeSeries)
	ref := day("2016-01-01")

	binned, err := ApplyTemporalBinning(spec, 7, ref)
	if err != nil {
		t.Fatalf("ApplyTemporalBinning: %v", err)
	}
	if binned.TemporalBin == nil || binned.TemporalBin.WidthDays != 7 {
		t.Fatalf("bin = %+v", binned.TemporalBin)
	}
	if spec.TemporalBin != nil {
		t.Fatalf("input spec mutated")
	}

	if _, err := ApplyTemporalBinning(spec, 0, ref); !errors.Is(err, model.ErrInvalidRange) {
		t.Fatalf("zero width: err = %v", err)
	}
	if _, err := ApplyTemporalBinning(spec, 7, time.Time{}); err == nil {
		t.Fatalf("zero reference accepted")
	}
	if _, err := ApplyTemporalBinning(baseSpec(model.AggSpaceTime), 7, ref); err == nil {
		t.Fatalf("space-time mode accepted")
	}
}

// One-day bins assign every timestamp within a calendar day to the same
// bin, across a leap day, which day-of-year arithmetic gets wrong.
func TestTemporalBinDayOffsets(t *testing.T) {
	b := model.TemporalBin{WidthDays: 1, Reference: day("2016-02-28")}
	cases := []struct {
		ts   string
		want int
	}{
		{"2016-02-28T00:00:00Z", 0},
		{"2016-02-28T23:59:59Z", 0},
		{"2016-02-29T12:00:00Z", 1},
		{"2016-03-01T00:30:00Z", 2},
		{"2017-02-28T00:00:00Z", 366}, // 2016 has 366 days
	}
	for _, c := range cases {
		ts, err := time.Parse(time.RFC3339, c.ts)
		if err != nil {
			t.Fatalf("parse %s: %v", c.ts, err)
		}
		if got := b.Offset(ts); got != c.want {
			t.Errorf("Offset(%s) = %d, want %d", c.ts, got, c.want)
		}
	}

	weekly := model.TemporalBin{WidthDays: 7, Reference: day("2016-01-01")}
	if got := weekly.Offset(day("2016-01-04")); got != 0 {
		t.Errorf("weekly Offset(+3d) = %d, want 0", got)
	}
	if got := weekly.Offset(day("2016-01-09")); got != 7 {
		t.Errorf("weekly Offset(+8d) = %d, want 7", got)
	}
}
