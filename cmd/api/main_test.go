package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
)

func TestSetupMetricsExposesBookingMetrics(t *testing.T) {
	registry, handler := setupMetrics()
	if registry == nil || handler == nil {
		t.Fatalf("expected non-nil registry and handler")
	}

	m := metrics.NewBookingMetrics(registry)
	m.ObserveBooking("ok", 0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "careconnect_booking_appointments_total") {
		t.Fatalf("expected booking counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector metrics")
	}
}

// Each call builds its own registry, so wiring twice must not panic on
// duplicate registration.
func TestSetupMetricsUsesPrivateRegistry(t *testing.T) {
	for i := 0; i < 2; i++ {
		registry, _ := setupMetrics()
		var reg prometheus.Registerer = registry
		metrics.NewBookingMetrics(reg)
	}
}

func TestAuthSecret(t *testing.T) {
	secret, err := authSecret(&appconfig.Config{Env: "development"})
	if err != nil || secret != devAuthSecret {
		t.Fatalf("expected dev secret, got %q, %v", secret, err)
	}
	if _, err := authSecret(&appconfig.Config{Env: "production"}); err == nil {
		t.Fatalf("expected error without secret in production")
	}
	secret, err = authSecret(&appconfig.Config{Env: "production", AuthJWTSecret: "s3cret"})
	if err != nil || secret != "s3cret" {
		t.Fatalf("expected configured secret, got %q, %v", secret, err)
	}
}
