package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/config"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/observability"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/realtime"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Inventory     services.InventoryGuard
	Vouchers      services.VoucherLedger
	Notifications services.NotificationService
	Scheduler     services.ConfirmationScheduler
	Invoices      services.InvoiceService
	Reviews       services.ReviewService
	System        services.SystemService
}

// Container wires repositories, services, and realtime infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Services      Services
	Hub           *realtime.Hub
	Realtime      *realtime.Server
	Authenticator *auth.Authenticator

	closers []func(context.Context) error
}

// Option supplies infrastructure built outside the container.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	verifier  auth.TokenVerifier
	customers services.CustomerDirectory
	events    services.InvoiceEventPublisher
	locker    services.Locker
	build     services.BuildInfo
	clock     func() time.Time
	afterFunc func(time.Duration, func()) services.Timer
	closers   []func(context.Context) error
}

// WithLogger sets the base logger; every component receives a named child.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTokenVerifier overrides the Firebase verifier used by the HTTP and websocket authenticators.
func WithTokenVerifier(verifier auth.TokenVerifier) Option {
	return func(o *options) {
		o.verifier = verifier
	}
}

// WithCustomerDirectory overrides the lookup of customer display names.
func WithCustomerDirectory(directory services.CustomerDirectory) Option {
	return func(o *options) {
		o.customers = directory
	}
}

// WithEventPublisher enables publication of invoice lifecycle events.
func WithEventPublisher(publisher services.InvoiceEventPublisher) Option {
	return func(o *options) {
		o.events = publisher
	}
}

// WithLocker guards auto-confirmation with a distributed lock.
func WithLocker(locker services.Locker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithBuildInfo sets the build metadata reported by the health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAfterFunc overrides how the confirmation scheduler arms its timers.
func WithAfterFunc(fn func(time.Duration, func()) services.Timer) Option {
	return func(o *options) {
		o.afterFunc = fn
	}
}

// WithCloser registers a release hook run by Close after the services stop.
func WithCloser(fn func(context.Context) error) Option {
	return func(o *options) {
		if fn != nil {
			o.closers = append(o.closers, fn)
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring passes the Firestore
// registry while tests can supply the in-memory one.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	if o.verifier == nil && strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		firebase, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		o.verifier = firebase
		if o.customers == nil {
			o.customers = firebase
		}
	}

	hub, err := realtime.NewHub(realtime.HubOptions{Logger: o.logger.Named("realtime")})
	if err != nil {
		return nil, fmt.Errorf("build realtime hub: %w", err)
	}

	authenticator := auth.NewAuthenticator(o.verifier)
	server, err := realtime.NewServer(hub, authenticator, realtime.ServerOptions{
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Logger:         o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build realtime server: %w", err)
	}

	svc, err := buildServices(reg, cfg, hub, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Repositories:  reg,
		Services:      svc,
		Hub:           hub,
		Realtime:      server,
		Authenticator: authenticator,
		closers:       o.closers,
	}, nil
}

// Close stops pending confirmation jobs, disconnects realtime clients, then releases the registry and
// any registered closers. It returns the first error encountered.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Services.Scheduler != nil {
		c.Services.Scheduler.Stop()
	}
	c.Hub.Stop()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, cfg config.Config, hub *realtime.Hub, o options) (Services, error) {
	var svc Services

	inventory, err := services.NewInventoryGuard(services.InventoryGuardDeps{
		Inventory: reg.Inventory(),
		Clock:     o.clock,
		Logger:    observability.EventLogger(o.logger.Named("inventory")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory guard: %w", err)
	}
	svc.Inventory = inventory

	vouchers, err := services.NewVoucherLedger(services.VoucherLedgerDeps{
		Vouchers: reg.Vouchers(),
		Clock:    o.clock,
		Logger:   observability.EventLogger(o.logger.Named("vouchers")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build voucher ledger: %w", err)
	}
	svc.Vouchers = vouchers

	notifications, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: reg.Notifications(),
		Invoices:      reg.Invoices(),
		Reviews:       reg.Reviews(),
		Products:      reg.Products(),
		Realtime:      hub,
		Customers:     o.customers,
		Clock:         o.clock,
		Logger:        observability.EventLogger(o.logger.Named("notifications")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notifications

	scheduler, err := services.NewConfirmationScheduler(services.ConfirmationSchedulerDeps{
		Invoices:  reg.Invoices(),
		Notifier:  notifications,
		Events:    o.events,
		Locker:    o.locker,
		LockTTL:   cfg.Redis.LockTTL,
		Delay:     cfg.Scheduler.ConfirmationDelay,
		Clock:     o.clock,
		AfterFunc: o.afterFunc,
		Logger:    observability.EventLogger(o.logger.Named("scheduler")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build confirmation scheduler: %w", err)
	}
	svc.Scheduler = scheduler

	invoices, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Invoices:   reg.Invoices(),
		Products:   reg.Products(),
		Inventory:  inventory,
		Vouchers:   vouchers,
		Scheduler:  scheduler,
		Notifier:   notifications,
		Events:     o.events,
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     observability.EventLogger(o.logger.Named("invoices")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build invoice service: %w", err)
	}
	svc.Invoices = invoices

	reviews, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:    reg.Reviews(),
		Invoices:   reg.Invoices(),
		Vouchers:   vouchers,
		Notifier:   notifications,
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     observability.EventLogger(o.logger.Named("reviews")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviews

	build := o.build
	if build.Environment == "" {
		build.Environment = cfg.Security.Environment
	}
	if healthRepo := reg.Health(); healthRepo != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Scheduler:        scheduler,
			Presence:         hub.Tracker(),
			Clock:            o.clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
