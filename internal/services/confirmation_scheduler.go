package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	// DefaultConfirmationDelay is how long an invoice may stay PENDING before it is confirmed
	// automatically.
	DefaultConfirmationDelay = 30 * time.Minute

	servicesMetricNamespace = "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
	autoConfirmLockPrefix   = "invoice:autoconfirm:"
	autoConfirmActorID      = "system:auto-confirm"
	defaultAutoConfirmLock  = 30 * time.Second
	autoConfirmFireTimeout  = 30 * time.Second
)

// ErrScheduleNotFound indicates no confirmation job is armed for a PENDING invoice.
var ErrScheduleNotFound = errors.New("scheduler: confirmation job not found")

// Timer is the cancellable handle of an armed job.
type Timer interface {
	Stop() bool
}

// ConfirmationSchedulerDeps bundles collaborators required to construct the scheduler.
type ConfirmationSchedulerDeps struct {
	Invoices  repositories.InvoiceRepository
	Notifier  InvoiceNotifier
	Events    InvoiceEventPublisher
	Locker    Locker
	LockTTL   time.Duration
	Delay     time.Duration
	Clock     func() time.Time
	AfterFunc func(d time.Duration, fn func()) Timer
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type confirmationJob struct {
	timer      Timer
	fireAt     time.Time
	generation uint64
}

type confirmationScheduler struct {
	invoices  repositories.InvoiceRepository
	notifier  InvoiceNotifier
	events    InvoiceEventPublisher
	locker    Locker
	lockTTL   time.Duration
	delay     time.Duration
	clock     func() time.Time
	afterFunc func(time.Duration, func()) Timer
	logger    func(context.Context, string, map[string]any)

	scheduled metric.Int64Counter
	cancelled metric.Int64Counter
	fired     metric.Int64Counter
	applied   metric.Int64Counter

	mu         sync.Mutex
	jobs       map[string]*confirmationJob
	generation uint64
	stopped    bool
}

// NewConfirmationScheduler constructs a scheduler with an empty job table.
func NewConfirmationScheduler(deps ConfirmationSchedulerDeps) (ConfirmationScheduler, error) {
	if deps.Invoices == nil {
		return nil, errors.New("confirmation scheduler: invoice repository is required")
	}

	delay := deps.Delay
	if delay <= 0 {
		delay = DefaultConfirmationDelay
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultAutoConfirmLock
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	afterFunc := deps.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(servicesMetricNamespace)
	}

	s := &confirmationScheduler{
		invoices:  deps.Invoices,
		notifier:  deps.Notifier,
		events:    deps.Events,
		locker:    deps.Locker,
		lockTTL:   lockTTL,
		delay:     delay,
		clock:     func() time.Time { return clock().UTC() },
		afterFunc: afterFunc,
		logger:    logger,
		jobs:      make(map[string]*confirmationJob),
	}

	var err error
	if s.scheduled, err = meter.Int64Counter("invoice.autoconfirm.scheduled",
		metric.WithDescription("Confirmation jobs armed")); err != nil {
		return nil, fmt.Errorf("confirmation scheduler: create counter: %w", err)
	}
	if s.cancelled, err = meter.Int64Counter("invoice.autoconfirm.cancelled",
		metric.WithDescription("Confirmation jobs cancelled before firing")); err != nil {
		return nil, fmt.Errorf("confirmation scheduler: create counter: %w", err)
	}
	if s.fired, err = meter.Int64Counter("invoice.autoconfirm.fired",
		metric.WithDescription("Confirmation jobs that fired")); err != nil {
		return nil, fmt.Errorf("confirmation scheduler: create counter: %w", err)
	}
	if s.applied, err = meter.Int64Counter("invoice.autoconfirm.applied",
		metric.WithDescription("Invoices confirmed automatically")); err != nil {
		return nil, fmt.Errorf("confirmation scheduler: create counter: %w", err)
	}
	return s, nil
}

// Schedule arms the job for invoiceID at createdAt plus the confirmation delay, replacing any job
// already armed for it. Overdue jobs fire immediately.
func (s *confirmationScheduler) Schedule(invoiceID string, createdAt time.Time) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return
	}
	fireAt := createdAt.UTC().Add(s.delay)
	wait := max(fireAt.Sub(s.clock()), 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if existing, ok := s.jobs[invoiceID]; ok {
		existing.timer.Stop()
	}
	s.generation++
	generation := s.generation
	job := &confirmationJob{fireAt: fireAt, generation: generation}
	// the callback takes s.mu first, so it cannot observe the table before job is stored
	job.timer = s.afterFunc(wait, func() { s.fire(invoiceID, generation) })
	s.jobs[invoiceID] = job
	s.scheduled.Add(context.Background(), 1)
}

func (s *confirmationScheduler) Cancel(invoiceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[invoiceID]
	if !ok {
		return false
	}
	delete(s.jobs, invoiceID)
	job.timer.Stop()
	s.cancelled.Add(context.Background(), 1)
	return true
}

func (s *confirmationScheduler) ListScheduled() []ScheduledConfirmation {
	s.mu.Lock()
	out := make([]ScheduledConfirmation, 0, len(s.jobs))
	for id, job := range s.jobs {
		out = append(out, ScheduledConfirmation{InvoiceID: id, NextInvocation: job.fireAt})
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b ScheduledConfirmation) int {
		if c := a.NextInvocation.Compare(b.NextInvocation); c != 0 {
			return c
		}
		return cmp.Compare(a.InvoiceID, b.InvoiceID)
	})
	return out
}

func (s *confirmationScheduler) GetTimeoutFor(ctx context.Context, invoiceID string) (time.Time, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
		}
		return time.Time{}, fmt.Errorf("scheduler: load invoice %s: %w", invoiceID, err)
	}
	if invoice.Status != domain.InvoiceStatusPending {
		return time.Time{}, fmt.Errorf("%w: invoice %s is %s", ErrScheduleNotFound, invoiceID, invoice.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[invoiceID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: invoice %s", ErrScheduleNotFound, invoiceID)
	}
	return job.fireAt, nil
}

// Rearm schedules every PENDING invoice from its creation time. Jobs for invoices older than the
// confirmation delay fire immediately.
func (s *confirmationScheduler) Rearm(ctx context.Context) (int, error) {
	pending, err := s.invoices.ListByStatus(ctx, domain.InvoiceStatusPending)
	if err != nil {
		return 0, fmt.Errorf("scheduler: list pending invoices: %w", err)
	}
	for _, invoice := range pending {
		s.Schedule(invoice.ID, invoice.CreatedAt)
	}
	s.logger(ctx, "scheduler.rearm.completed", map[string]any{"count": len(pending)})
	return len(pending), nil
}

func (s *confirmationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, id)
	}
}

func (s *confirmationScheduler) fire(invoiceID string, generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), autoConfirmFireTimeout)
	defer cancel()
	defer s.forget(invoiceID, generation)
	defer func() {
		if r := recover(); r != nil {
			s.logger(ctx, "scheduler.fire.panic", map[string]any{
				"invoiceId": invoiceID,
				"panic":     fmt.Sprint(r),
			})
		}
	}()

	s.mu.Lock()
	job, ok := s.jobs[invoiceID]
	live := ok && job.generation == generation
	s.mu.Unlock()
	if !live {
		return
	}

	s.fired.Add(ctx, 1)
	if err := s.confirm(ctx, invoiceID); err != nil {
		s.logger(ctx, "scheduler.fire.failed", map[string]any{
			"invoiceId": invoiceID,
			"error":     err.Error(),
		})
	}
}

// confirm moves the invoice from PENDING to CONFIRMED. The status write is conditioned on PENDING, so
// a manual transition that lands first turns this into a no-op.
func (s *confirmationScheduler) confirm(ctx context.Context, invoiceID string) error {
	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, autoConfirmLockPrefix+invoiceID, s.lockTTL)
		switch {
		case err != nil:
			s.logger(ctx, "scheduler.lock.failed", map[string]any{
				"invoiceId": invoiceID,
				"error":     err.Error(),
			})
		case !acquired:
			s.logger(ctx, "scheduler.fire.skipped", map[string]any{
				"invoiceId": invoiceID,
				"reason":    "locked",
			})
			return nil
		default:
			defer func() {
				if err := release(ctx); err != nil {
					s.logger(ctx, "scheduler.lock.release.failed", map[string]any{
						"invoiceId": invoiceID,
						"error":     err.Error(),
					})
				}
			}()
		}
	}

	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "scheduler.fire.skipped", map[string]any{"invoiceId": invoiceID, "reason": "missing"})
			return nil
		}
		return fmt.Errorf("load invoice: %w", err)
	}
	if invoice.Status != domain.InvoiceStatusPending {
		s.logger(ctx, "scheduler.fire.skipped", map[string]any{
			"invoiceId": invoiceID,
			"reason":    "status",
			"status":    string(invoice.Status),
		})
		return nil
	}

	now := s.clock()
	updated, err := s.invoices.UpdateStatus(ctx, invoiceID, domain.InvoiceStatusPending, domain.InvoiceStatusConfirmed, now)
	if err != nil {
		if repositories.IsConflict(err) {
			s.logger(ctx, "scheduler.fire.skipped", map[string]any{"invoiceId": invoiceID, "reason": "conflict"})
			return nil
		}
		return fmt.Errorf("confirm invoice: %w", err)
	}
	s.applied.Add(ctx, 1)

	if s.events != nil {
		event := InvoiceEvent{
			Type:           invoiceEventStatusChanged,
			InvoiceID:      updated.ID,
			UserID:         updated.UserID,
			PreviousStatus: string(domain.InvoiceStatusPending),
			CurrentStatus:  string(updated.Status),
			ActorID:        autoConfirmActorID,
			Total:          updated.Total.StringFixed(2),
			OccurredAt:     now,
		}
		if err := s.events.PublishInvoiceEvent(ctx, event); err != nil {
			s.logger(ctx, "invoice.event.publish.failed", map[string]any{
				"type":    event.Type,
				"invoice": event.InvoiceID,
				"error":   err.Error(),
				"status":  event.CurrentStatus,
			})
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyInvoiceStatusChange(ctx, updated, domain.InvoiceStatusPending)
	}
	return nil
}

// forget drops the job entry unless it has been replaced by a newer schedule.
func (s *confirmationScheduler) forget(invoiceID string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[invoiceID]; ok && job.generation == generation {
		delete(s.jobs, invoiceID)
	}
}
