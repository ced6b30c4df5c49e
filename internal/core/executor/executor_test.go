package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, h http.HandlerFunc) (*Executor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	exec, err := New(discardLogger(), srv.Client(), srv.URL+"/api/query")
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}
	return exec, srv
}

func TestExecute_JSONColumnar(t *testing.T) {
	var gotBody queryEnvelope
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"columns":["time","lat","lon","chl"],"rows":[["2016-05-01 00:00:00",10.5,-155.5,0.12],["2016-05-01 00:00:00",10.5,-155.25,null]]}`))
	})

	query := "select [time], lat, lon, chl from tblCHL_REP where lat between 10 and 20"
	raw, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotBody.Query != query {
		t.Fatalf("query on the wire = %q", gotBody.Query)
	}
	if len(raw.Columns) != 4 || raw.Columns[3] != "chl" {
		t.Fatalf("columns = %v", raw.Columns)
	}
	if len(raw.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(raw.Rows))
	}
	if raw.Rows[1][3] != nil {
		t.Fatalf("null cell = %v, want nil", raw.Rows[1][3])
	}
}

func TestExecute_JSONObjectRows(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":10.5,"chl":0.12},{"lat":10.75,"chl":null}]`))
	})

	raw, err := exec.Execute(context.Background(), "select lat, chl from tblCHL_REP")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// object keys come back sorted
	if len(raw.Columns) != 2 || raw.Columns[0] != "chl" || raw.Columns[1] != "lat" {
		t.Fatalf("columns = %v", raw.Columns)
	}
	if raw.Rows[0][1] != 10.5 {
		t.Fatalf("lat cell = %v", raw.Rows[0][1])
	}
}

func TestExecute_CSVWithHeader(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("time,lat,lon,chl\n2016-05-01 00:00:00,10.5,-155.5,0.12\n2016-05-01 00:00:00,10.5,-155.25,\n"))
	})

	raw, err := exec.Execute(context.Background(), "select [time], lat, lon, chl from tblCHL_REP")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(raw.Columns) != 4 || raw.Columns[0] != "time" {
		t.Fatalf("columns = %v", raw.Columns)
	}
	if len(raw.Rows) != 2 {
		t.Fatalf("rows = %d", len(raw.Rows))
	}
	if raw.Rows[1][3] != "" {
		t.Fatalf("empty cell = %v", raw.Rows[1][3])
	}
}

func TestExecute_HeadlessCSVGetsPositionalNames(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("10.5,-155.5,0.12\n10.75,-155.25,0.14\n"))
	})

	raw, err := exec.Execute(context.Background(), "select lat, lon, chl from tblCHL_REP")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"col1", "col2", "col3"}
	for i, c := range want {
		if raw.Columns[i] != c {
			t.Fatalf("columns = %v, want %v", raw.Columns, want)
		}
	}
	if len(raw.Rows) != 2 {
		t.Fatalf("header detection ate a data row: %d rows", len(raw.Rows))
	}
}

func TestExecute_TSV(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/tab-separated-values")
		_, _ = w.Write([]byte("lat\tchl\n10.5\t0.12\n"))
	})

	raw, err := exec.Execute(context.Background(), "select lat, chl from tblCHL_REP")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(raw.Columns) != 2 || raw.Columns[1] != "chl" {
		t.Fatalf("columns = %v", raw.Columns)
	}
}

func TestExecute_UndeclaredContentTypeFallsBack(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte(`{"columns":["lat"],"rows":[[10.5]]}`))
	})

	raw, err := exec.Execute(context.Background(), "select lat from tblCHL_REP")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(raw.Columns) != 1 || raw.Columns[0] != "lat" {
		t.Fatalf("columns = %v", raw.Columns)
	}
}

func TestExecute_ForbiddenStatementNeverSent(t *testing.T) {
	var hits atomic.Int64
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"columns":[],"rows":[]}`))
	})

	_, err := exec.Execute(context.Background(), "DROP TABLE tblCHL_REP")
	if !errors.Is(err, model.ErrForbiddenStatement) {
		t.Fatalf("err = %v, want ErrForbiddenStatement", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("forbidden query reached the remote service")
	}
}

func TestExecute_UpstreamErrorStatus(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database on fire", http.StatusInternalServerError)
	})

	_, err := exec.Execute(context.Background(), "select lat from tblCHL_REP")
	if !errors.Is(err, model.ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestExecute_MalformedJSON(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"columns":["lat"],"rows":[[10.5],[1,2]]}`))
	})

	_, err := exec.Execute(context.Background(), "select lat from tblCHL_REP")
	if !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("ragged rows: err = %v, want ErrMalformedResponse", err)
	}
}

func TestExecute_DeadlineMapsToTimeout(t *testing.T) {
	exec, _ := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := exec.Execute(ctx, "select lat from tblCHL_REP")
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
