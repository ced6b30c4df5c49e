package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type readyFlag bool

func (r readyFlag) Ready() bool { return bool(r) }

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestReadiness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	rr := httptest.NewRecorder()
	Readiness(readyFlag(false))(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: status=%d want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Fatalf("body=%q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	Readiness(readyFlag(true))(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready: status=%d want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ready"`) {
		t.Fatalf("body=%q", rr.Body.String())
	}
}
