package executor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// The remote service answers either structured JSON (columns + row
// arrays, or an array of objects) or delimited text, with or without a
// header row. Whatever arrives, the caller gets a named table:
// responses without column names get synthesized positional names.

func parseResponse(resp *http.Response) (model.RawResult, error) {
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "json"):
		return parseJSON(resp.Body)
	case strings.Contains(ct, "csv"), strings.Contains(ct, "tab-separated"), strings.HasPrefix(ct, "text/"):
		return parseDelimited(resp.Body, delimiterFor(ct))
	default:
		// undeclared content type: try JSON, fall back to CSV
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return model.RawResult{}, err
		}
		if raw, jerr := parseJSON(strings.NewReader(string(data))); jerr == nil {
			return raw, nil
		}
		return parseDelimited(strings.NewReader(string(data)), ',')
	}
}

func delimiterFor(ct string) rune {
	if strings.Contains(ct, "tab") {
		return '\t'
	}
	return ','
}

type columnarPayload struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func parseJSON(r io.Reader) (model.RawResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.RawResult{}, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return model.RawResult{}, fmt.Errorf("empty payload: %w", model.ErrMalformedResponse)
	}

	if strings.HasPrefix(trimmed, "[") {
		return parseObjectRows([]byte(trimmed))
	}

	var payload columnarPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return model.RawResult{}, fmt.Errorf("decode json payload: %v: %w", err, model.ErrMalformedResponse)
	}
	cols := synthesizeNames(payload.Columns, widestRow(payload.Rows))
	for i, row := range payload.Rows {
		if len(row) != len(cols) {
			return model.RawResult{}, fmt.Errorf("row %d has %d cells, want %d: %w", i, len(row), len(cols), model.ErrMalformedResponse)
		}
	}
	return model.RawResult{Columns: cols, Rows: payload.Rows}, nil
}

func parseObjectRows(data []byte) (model.RawResult, error) {
	var objs []map[string]any
	if err := json.Unmarshal(data, &objs); err != nil {
		return model.RawResult{}, fmt.Errorf("decode json rows: %v: %w", err, model.ErrMalformedResponse)
	}
	if len(objs) == 0 {
		return model.RawResult{}, nil
	}
	cols := make([]string, 0, len(objs[0]))
	for k := range objs[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	rows := make([][]any, 0, len(objs))
	for _, o := range objs {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = o[c]
		}
		rows = append(rows, row)
	}
	return model.RawResult{Columns: cols, Rows: rows}, nil
}

func parseDelimited(r io.Reader, delim rune) (model.RawResult, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return model.RawResult{}, fmt.Errorf("decode delimited payload: %v: %w", err, model.ErrMalformedResponse)
	}
	if len(records) == 0 {
		return model.RawResult{}, nil
	}

	width := len(records[0])
	for i, rec := range records {
		if len(rec) != width {
			return model.RawResult{}, fmt.Errorf("record %d has %d fields, want %d: %w", i, len(rec), width, model.ErrMalformedResponse)
		}
	}

	var cols []string
	body := records
	if looksLikeHeader(records[0]) {
		cols = synthesizeNames(records[0], width)
		body = records[1:]
	} else {
		cols = synthesizeNames(nil, width)
	}

	rows := make([][]any, 0, len(body))
	for _, rec := range body {
		row := make([]any, width)
		for i, cell := range rec {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return model.RawResult{Columns: cols, Rows: rows}, nil
}

// looksLikeHeader treats a first record as a header only when none of
// its non-empty cells parse as numbers.
func looksLikeHeader(rec []string) bool {
	nonEmpty := 0
	for _, cell := range rec {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
	}
	return nonEmpty > 0
}

// synthesizeNames fills in positional names (col1, col2, ...) for
// missing or blank column names so every result is a named table.
func synthesizeNames(names []string, width int) []string {
	if width < len(names) {
		width = len(names)
	}
	out := make([]string, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(names) {
			name = strings.TrimSpace(names[i])
		}
		if name == "" {
			name = "col" + strconv.Itoa(i+1)
		}
		out[i] = name
	}
	return out
}

func widestRow(rows [][]any) int {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}
