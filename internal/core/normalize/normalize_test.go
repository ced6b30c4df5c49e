package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

func TestNormalize_Types(t *testing.T) {
	raw := model.RawResult{
		Columns: []string{"time", "lat", "chl", "flag"},
		Rows: [][]any{
			{"2016-05-01 00:00:00", 10.5, 0.12, "good"},
			{"2016-05-01", "10.75", nil, ""},
		},
	}

	res := Normalize(raw)
	if res.RowsReturned != 2 || len(res.Rows) != 2 {
		t.Fatalf("rows = %d", res.RowsReturned)
	}

	r0 := res.Rows[0]
	if r0["time"].Kind != model.KindTime {
		t.Fatalf("time cell kind = %s", r0["time"].Kind)
	}
	want := time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC)
	if !r0["time"].Time.Equal(want) {
		t.Fatalf("time cell = %v", r0["time"].Time)
	}
	if r0["lat"].Kind != model.KindNumber || r0["lat"].Number != 10.5 {
		t.Fatalf("lat cell = %+v", r0["lat"])
	}
	if r0["flag"].Kind != model.KindText || r0["flag"].Text != "good" {
		t.Fatalf("flag cell = %+v", r0["flag"])
	}

	r1 := res.Rows[1]
	if r1["lat"].Kind != model.KindNumber || r1["lat"].Number != 10.75 {
		t.Fatalf("numeric string cell = %+v", r1["lat"])
	}
	if !r1["chl"].IsNull() {
		t.Fatalf("nil cell not null: %+v", r1["chl"])
	}
	if !r1["flag"].IsNull() {
		t.Fatalf("empty string cell not null: %+v", r1["flag"])
	}
}

// Missing values stay null: they never surface as zero or as a NaN
// that would silently skew a mean downstream.
func TestNormalize_NullSentinels(t *testing.T) {
	raw := model.RawResult{
		Columns: []string{"chl"},
		Rows: [][]any{
			{nil}, {""}, {"null"}, {"NaN"}, {"na"}, {math.NaN()}, {math.Inf(1)},
		},
	}
	res := Normalize(raw)
	for i, row := range res.Rows {
		if v := row["chl"]; !v.IsNull() {
			t.Errorf("row %d: %+v, want null", i, v)
		}
	}
}

func TestNormalize_ShortRowPadsNull(t *testing.T) {
	raw := model.RawResult{
		Columns: []string{"lat", "chl"},
		Rows:    [][]any{{10.5}},
	}
	res := Normalize(raw)
	if !res.Rows[0]["chl"].IsNull() {
		t.Fatalf("missing trailing cell not null")
	}
}

func TestNormalize_OrderPreserved(t *testing.T) {
	raw := model.RawResult{
		Columns: []string{"lat"},
		Rows:    [][]any{{3.0}, {1.0}, {2.0}},
	}
	res := Normalize(raw)
	got := []float64{res.Rows[0]["lat"].Number, res.Rows[1]["lat"].Number, res.Rows[2]["lat"].Number}
	if got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("row order changed: %v", got)
	}
}

func TestCountNulls(t *testing.T) {
	raw := model.RawResult{
		Columns: []string{"lat", "chl"},
		Rows: [][]any{
			{10.5, 0.12},
			{10.75, nil},
			{11.0, "nan"},
			{11.25, 0.14},
		},
	}
	res := Normalize(raw)
	if n := CountNulls(res, "chl"); n != 2 {
		t.Fatalf("CountNulls(chl) = %d, want 2", n)
	}
	if n := CountNulls(res, "lat"); n != 0 {
		t.Fatalf("CountNulls(lat) = %d, want 0", n)
	}
	// unknown column: every row counts as null
	if n := CountNulls(res, "sst"); n != 4 {
		t.Fatalf("CountNulls(sst) = %d, want 4", n)
	}
}
