// Package normalize types the raw tabular payload into a consistent
// result: every cell becomes number, text, timestamp or null.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts raw rows into typed rows. A missing numeric cell
// becomes the null value, never zero and never a NaN that silently
// participates in arithmetic. Server-computed aggregates and count
// columns pass through unmodified; null counts are never derived here
// from an aggregate. Row order is preserved exactly.
func Normalize(raw model.RawResult) model.QueryResult {
	rows := make([]model.Row, 0, len(raw.Rows))
	for _, rec := range raw.Rows {
		row := make(model.Row, len(raw.Columns))
		for i, col := range raw.Columns {
			if i < len(rec) {
				row[col] = typeCell(rec[i])
			} else {
				row[col] = model.Null()
			}
		}
		rows = append(rows, row)
	}
	return model.QueryResult{
		Columns:      append([]string(nil), raw.Columns...),
		Rows:         rows,
		RowsReturned: len(rows),
	}
}

func typeCell(cell any) model.Value {
	switch v := cell.(type) {
	case nil:
		return model.Null()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Null()
		}
		return model.Number(v)
	case int:
		return model.Number(float64(v))
	case int64:
		return model.Number(float64(v))
	case bool:
		return model.Text(strconv.FormatBool(v))
	case string:
		return typeText(v)
	default:
		return model.Null()
	}
}

func typeText(s string) model.Value {
	t := strings.TrimSpace(s)
	if t == "" {
		return model.Null()
	}
	switch strings.ToLower(t) {
	case "null", "nan", "na":
		return model.Null()
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, t); err == nil {
			return model.Timestamp(ts)
		}
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return model.Null()
		}
		return model.Number(f)
	}
	return model.Text(s)
}

// CountNulls counts null cells of one column, independently of any
// server-side count columns the result may carry.
func CountNulls(res model.QueryResult, column string) int64 {
	var n int64
	for _, row := range res.Rows {
		v, ok := row[column]
		if !ok || v.IsNull() {
			n++
		}
	}
	return n
}
