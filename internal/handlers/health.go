package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const readyCheckTimeout = 5 * time.Second

// ReadyCheck probes a single downstream dependency.
type ReadyCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	startedAt time.Time
	clock     func() time.Time
	checks    map[string]ReadyCheck
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the time source, primarily for testing.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadyCheck registers a named dependency probe evaluated by /readyz.
func WithReadyCheck(name string, check ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || check == nil {
			return
		}
		h.checks[name] = check
	}
}

// NewHealthHandlers constructs the health endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:  time.Now,
		checks: make(map[string]ReadyCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.clock()
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeHealthJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz runs the registered dependency probes and reports aggregate readiness.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	results := make(map[string]string, len(h.checks))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			overall = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	payload := map[string]any{
		"status":    overall,
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	}
	if len(results) > 0 {
		payload["checks"] = results
	}
	writeHealthJSON(w, status, payload)
}

func writeHealthJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
