package handlers

import (
	"net/http"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Readiness consults the
// system service when configured; liveness never does.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs health handlers. A nil system service degrades
// readiness to a plain liveness response.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

type healthResponse struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commit_sha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	UptimeSec   int64                         `json:"uptime_seconds,omitempty"`
	GeneratedAt string                        `json:"generated_at,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthResponse{Status: domain.HealthStatusOK})
}

// Readyz reports dependency readiness via the system health report.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.system == nil {
		writeJSONResponse(w, http.StatusOK, healthResponse{Status: domain.HealthStatusOK})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{
			Status: domain.HealthStatusError,
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	payload := healthResponse{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		UptimeSec:   int64(report.Uptime.Seconds()),
		GeneratedAt: formatTime(report.GeneratedAt),
	}
	if len(report.Checks) > 0 {
		payload.Checks = make(map[string]healthCheckPayload, len(report.Checks))
		for name, check := range report.Checks {
			payload.Checks[name] = healthCheckPayload{
				Status:    check.Status,
				Detail:    check.Detail,
				Error:     check.Error,
				LatencyMS: check.Latency.Milliseconds(),
			}
		}
	}
	writeJSONResponse(w, status, payload)
}
