package handlers

import (
	"context"
	"net/http"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
)

// HealthReporter collects the dependency health report backing /readyz.
type HealthReporter interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	reporter  HealthReporter
	clock     func() time.Time
	startedAt time.Time
}

// HealthOption customises health handler behaviour.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthStartedAt overrides the process start time used for uptime.
func WithHealthStartedAt(startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if !startedAt.IsZero() {
			h.startedAt = startedAt
		}
	}
}

// NewHealthHandlers constructs health handlers. A nil reporter downgrades
// /readyz to the same shallow check as /healthz.
func NewHealthHandlers(reporter HealthReporter, opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		reporter:  reporter,
		clock:     time.Now,
		startedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessPayload struct {
	Status      string                        `json:"status"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	GeneratedAt string                        `json:"generatedAt,omitempty"`
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    string(domain.HealthStatusOK),
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz probes downstream dependencies. A degraded report still answers 200
// so load balancers keep routing; only a hard error answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.reporter.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readinessPayload{
			Status: string(domain.HealthStatusError),
		})
		return
	}

	payload := readinessPayload{
		Status:      string(report.Status),
		GeneratedAt: formatTime(report.GeneratedAt),
	}
	if len(report.Checks) > 0 {
		payload.Checks = make(map[string]healthCheckPayload, len(report.Checks))
		for name, check := range report.Checks {
			payload.Checks[name] = healthCheckPayload{
				Status:    string(check.Status),
				Detail:    check.Detail,
				Error:     check.Error,
				LatencyMS: check.Latency.Milliseconds(),
				CheckedAt: formatTime(check.CheckedAt),
			}
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
