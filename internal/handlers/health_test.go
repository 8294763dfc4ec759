package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/adega-club/api/internal/domain"
)

type stubSystemService struct {
	reportFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFunc != nil {
		return s.reportFunc(ctx)
	}
	return domain.SystemHealthReport{}, errors.New("not implemented")
}

func TestHealthHandlersHealthz(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	generated := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &stubSystemService{
		reportFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Version:     "1.4.0",
				CommitSHA:   "abc123",
				Environment: "production",
				Uptime:      90 * time.Second,
				GeneratedAt: generated,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
				},
			}, nil
		},
	}
	handler := NewHealthHandlers(service)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Version != "1.4.0" || resp.UptimeSec != 90 {
		t.Fatalf("unexpected payload %+v", resp)
	}
	check, ok := resp.Checks["firestore"]
	if !ok || check.Status != domain.HealthStatusOK || check.LatencyMS != 12 {
		t.Fatalf("unexpected firestore check %+v", resp.Checks)
	}
}

func TestHealthHandlersReadyzDependencyDown(t *testing.T) {
	service := &stubSystemService{
		reportFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	handler := NewHealthHandlers(service)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzReportFailure(t *testing.T) {
	service := &stubSystemService{
		reportFunc: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("probe failed")
		},
	}
	handler := NewHealthHandlers(service)

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzWithoutSystemService(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
