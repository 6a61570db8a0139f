package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds each dependency ping so a hung backend cannot
// stall the health endpoint.
const probeTimeout = 2 * time.Second

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// HealthResponse is the JSON response from the /health endpoint.
// Checks lists only the probes that failed.
type HealthResponse struct {
	Status string            `json:"status"` // "ok" or "unhealthy"
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthChecker runs registered dependency probes.
type HealthChecker struct {
	names   []string
	probes  map[string]Probe
	timeout time.Duration
}

// NewHealthChecker creates a HealthChecker with no probes registered.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		probes:  make(map[string]Probe),
		timeout: probeTimeout,
	}
}

// AddProbe registers a named dependency probe. Re-registering a name
// replaces the previous probe.
func (h *HealthChecker) AddProbe(name string, probe Probe) {
	if _, ok := h.probes[name]; !ok {
		h.names = append(h.names, name)
	}
	h.probes[name] = probe
}

// Check runs every registered probe in registration order.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	resp := HealthResponse{Status: "ok"}

	for _, name := range h.names {
		probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.probes[name](probeCtx)
		cancel()

		if err != nil {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string)
			}
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
		}
	}

	return resp
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback when no checker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	})
}
