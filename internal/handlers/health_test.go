package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
)

type stubHealthReporter struct {
	collectFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthReporter) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFunc != nil {
		return s.collectFunc(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

func TestHealthzReportsUptime(t *testing.T) {
	started := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)

	handler := NewHealthHandlers(nil,
		WithHealthClock(func() time.Time { return now }),
		WithHealthStartedAt(started),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["uptime"] != "1h30m0s" {
		t.Fatalf("expected uptime 1h30m0s, got %v", body["uptime"])
	}
}

func TestReadyzWithoutReporterFallsBackToLiveness(t *testing.T) {
	handler := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestReadyzDegradedStillAnswersOK(t *testing.T) {
	checkedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	reporter := &stubHealthReporter{
		collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: checkedAt},
					"pubsub":    {Status: domain.HealthStatusDegraded, Error: "deadline exceeded", CheckedAt: checkedAt},
				},
				GeneratedAt: checkedAt,
			}, nil
		},
	}
	handler := NewHealthHandlers(reporter)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for degraded, got %d", rr.Code)
	}

	var body readinessPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", body.Status)
	}
	if len(body.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(body.Checks))
	}
	if body.Checks["firestore"].LatencyMS != 12 {
		t.Fatalf("expected firestore latency 12ms, got %d", body.Checks["firestore"].LatencyMS)
	}
	if body.Checks["pubsub"].Error != "deadline exceeded" {
		t.Fatalf("expected pubsub error detail, got %q", body.Checks["pubsub"].Error)
	}
}

func TestReadyzHardErrorAnswersServiceUnavailable(t *testing.T) {
	reporter := &stubHealthReporter{
		collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	handler := NewHealthHandlers(reporter)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzCollectFailureAnswersServiceUnavailable(t *testing.T) {
	reporter := &stubHealthReporter{
		collectFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("collect failed")
		},
	}
	handler := NewHealthHandlers(reporter)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
