package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveGateAllowed()
	metrics.ObserveGateDenied("rate_limit")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "meridian_gate_allowed_total 1") {
		t.Fatalf("expected gate allowed counter in body, got: %s", body)
	}
	if !strings.Contains(body, `meridian_gate_denied_total{stage="rate_limit"} 1`) {
		t.Fatalf("expected gate denied counter in body, got: %s", body)
	}
}

func TestNilMetricsIsInert(t *testing.T) {
	var m *Metrics
	m.ObserveGateAllowed()
	m.ObserveGateDenied("token")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}
