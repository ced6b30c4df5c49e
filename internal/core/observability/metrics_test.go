package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/query", 200, 0.001)
	ObserveUpstreamLatency("query", 0.2)
	ObservePreflight("proceed", 1234)
	SetCatalogSnapshot(3, 12, 1700000000)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"http_requests_total",
		"upstream_latency_seconds",
		"preflight_outcomes_total",
		"catalog_tables",
		"app_build_info",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics payload missing %s; got:\n%s", name, body)
		}
	}
}
