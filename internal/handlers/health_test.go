package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

type readinessBody struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Checks  map[string]readinessCheckPayload
	Details []string `json:"details"`
}

func TestHealthHandlersHealthzReportsBuild(t *testing.T) {
	started := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2025.05.1", Environment: "staging", StartedAt: started}),
		WithHealthClock(func() time.Time { return started.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := map[string]any{"status": "ok", "version": "2025.05.1", "environment": "staging", "uptime": "1m30s"}
	for key, value := range want {
		if body[key] != value {
			t.Fatalf("expected %s=%v, got %v", key, value, body[key])
		}
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	now := time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name        string
		svc         services.SystemService
		wantStatus  int
		wantBody    string
		wantDetails []string
	}{
		{
			name: "all dependencies ok",
			svc: &stubSystemService{report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Uptime:      2 * time.Hour,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
					"scheduler": {Status: domain.HealthStatusOK, Detail: "3 pending confirmations", CheckedAt: now},
				},
			}},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "redis degraded",
			svc: &stubSystemService{report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
					"redis":     {Status: domain.HealthStatusDegraded, Error: "dial tcp: i/o timeout"},
				},
			}},
			wantStatus:  http.StatusServiceUnavailable,
			wantBody:    "degraded",
			wantDetails: []string{"redis: dial tcp: i/o timeout"},
		},
		{
			name:        "report unavailable",
			svc:         &stubSystemService{err: errors.New("registry closed")},
			wantStatus:  http.StatusServiceUnavailable,
			wantBody:    "error",
			wantDetails: []string{"registry closed"},
		},
		{
			name:       "no system service",
			svc:        nil,
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := []HealthOption{WithHealthClock(func() time.Time { return now })}
			if tc.svc != nil {
				opts = append(opts, WithHealthSystemService(tc.svc))
			}
			rr := httptest.NewRecorder()
			NewHealthHandlers(opts...).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var body readinessBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tc.wantBody {
				t.Fatalf("expected status %s, got %s", tc.wantBody, body.Status)
			}
			if len(body.Details) != len(tc.wantDetails) {
				t.Fatalf("expected details %v, got %v", tc.wantDetails, body.Details)
			}
			for i := range tc.wantDetails {
				if body.Details[i] != tc.wantDetails[i] {
					t.Fatalf("expected details %v, got %v", tc.wantDetails, body.Details)
				}
			}
		})
	}
}

func TestHealthHandlersReadyzCarriesCheckDetail(t *testing.T) {
	now := time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC)
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Uptime:      2 * time.Hour,
		GeneratedAt: now,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
			"realtime":  {Status: domain.HealthStatusOK, Detail: "4 users, 1 admins connected"},
		},
	}}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body readinessBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Uptime != "2h0m0s" {
		t.Fatalf("unexpected uptime %q", body.Uptime)
	}
	if body.Checks["firestore"].LatencyMS != 12 {
		t.Fatalf("unexpected firestore latency %d", body.Checks["firestore"].LatencyMS)
	}
	if body.Checks["realtime"].Detail != "4 users, 1 admins connected" {
		t.Fatalf("unexpected realtime detail %q", body.Checks["realtime"].Detail)
	}
}
