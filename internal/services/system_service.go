package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

// PresenceCounter reports how many users and admins hold a live realtime connection.
type PresenceCounter interface {
	Counts() (users, admins int)
}

// SystemServiceDeps bundles collaborators required to construct a system service. Scheduler and
// Presence are optional; when set their state is reported as informational checks.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Scheduler        ConfirmationScheduler
	Presence         PresenceCounter
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	healthRepo repositories.HealthRepository
	scheduler  ConfirmationScheduler
	presence   PresenceCounter
	clock      func() time.Time
	build      BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service behind the health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		scheduler:  deps.Scheduler,
		presence:   deps.Presence,
		clock: func() time.Time {
			return clock().UTC()
		},
		build: build,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if strings.TrimSpace(report.Version) == "" {
		report.Version = s.build.Version
	}
	if strings.TrimSpace(report.Environment) == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 && !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	checks := make(map[string]domain.SystemHealthCheck, len(report.Checks)+2)
	maps.Copy(checks, report.Checks)
	if s.scheduler != nil {
		checks["scheduler"] = domain.SystemHealthCheck{
			Status:    domain.HealthStatusOK,
			Detail:    fmt.Sprintf("%d pending confirmations", len(s.scheduler.ListScheduled())),
			CheckedAt: now,
		}
	}
	if s.presence != nil {
		users, admins := s.presence.Counts()
		checks["realtime"] = domain.SystemHealthCheck{
			Status:    domain.HealthStatusOK,
			Detail:    fmt.Sprintf("%d users, %d admins connected", users, admins),
			CheckedAt: now,
		}
	}
	report.Checks = checks
	if report.Status == "" {
		report.Status = deriveStatus(report.Checks)
	}

	return report, nil
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) domain.HealthStatus {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
			continue
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
