package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHealthCheckerAllProbesPass(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddProbe("postgres", func(ctx context.Context) error { return nil })
	hc.AddProbe("redis", func(ctx context.Context) error { return nil })

	health := hc.Check(context.Background())

	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
	if len(health.Checks) != 0 {
		t.Errorf("Checks = %v, want empty", health.Checks)
	}
}

func TestHealthCheckerReportsFailures(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddProbe("postgres", func(ctx context.Context) error { return nil })
	hc.AddProbe("redis", func(ctx context.Context) error {
		return errors.New("dial tcp 127.0.0.1:6379: connection refused")
	})

	health := hc.Check(context.Background())

	if health.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", health.Status)
	}
	if _, ok := health.Checks["postgres"]; ok {
		t.Error("passing probe should not appear in Checks")
	}
	if msg := health.Checks["redis"]; !strings.Contains(msg, "connection refused") {
		t.Errorf("redis check = %q, want connection error", msg)
	}
}

func TestHealthCheckerProbeTimeout(t *testing.T) {
	hc := NewHealthChecker()
	hc.timeout = 10 * time.Millisecond
	hc.AddProbe("postgres", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	health := hc.Check(context.Background())

	if health.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy for a hung probe", health.Status)
	}
	if msg := health.Checks["postgres"]; !strings.Contains(msg, "context deadline exceeded") {
		t.Errorf("postgres check = %q, want deadline error", msg)
	}
}

func TestHealthCheckerReplacesProbe(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddProbe("postgres", func(ctx context.Context) error { return errors.New("down") })
	hc.AddProbe("postgres", func(ctx context.Context) error { return nil })

	health := hc.Check(context.Background())

	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok after replacing the failing probe", health.Status)
	}
}

func TestHealthHandlerOK(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddProbe("postgres", func(ctx context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	hc.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"status":"ok"}` {
		t.Errorf("body = %q, want {\"status\":\"ok\"}", body)
	}
}

func TestHealthHandlerUnhealthy503(t *testing.T) {
	hc := NewHealthChecker()
	hc.AddProbe("redis", func(ctx context.Context) error { return errors.New("NOAUTH") })

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	hc.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
	if resp.Checks["redis"] != "NOAUTH" {
		t.Errorf("Checks[redis] = %q, want NOAUTH", resp.Checks["redis"])
	}
}

func TestFallbackHealthHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"status":"ok"}` {
		t.Errorf("body = %q, want {\"status\":\"ok\"}", body)
	}
}
