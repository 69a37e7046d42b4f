package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/di"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/handlers"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/config"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/jobs"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/locks"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/observability"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/secrets"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
	firestoreRepo "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories/memory"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

const confirmationLockPrefix = "locks:"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	requiredSecrets := requiredSecretNames(envValues)
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	containerOpts := []di.Option{
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo),
	}
	var checks []repositories.DependencyCheck

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker, err := locks.NewRedisLocker(redisClient, locks.WithKeyPrefix(confirmationLockPrefix))
		if err != nil {
			logger.Fatal("failed to initialise redis locker", zap.Error(err))
		}
		containerOpts = append(containerOpts,
			di.WithLocker(locker),
			di.WithCloser(func(context.Context) error { return redisClient.Close() }),
		)
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Timeout:  time.Second,
			Optional: true,
			Check:    locker.Ping,
		})
	} else {
		logger.Info("redis not configured; auto-confirmation runs without a distributed lock")
	}

	if publisher, closeFn, err := newInvoicePublisher(ctx, cfg); err != nil {
		logger.Fatal("failed to initialise pubsub publisher", zap.Error(err))
	} else if publisher != nil {
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher), di.WithCloser(closeFn))
	}

	checks = append(checks, secretManagerCheck(fetcher))

	registry, err := newRegistry(cfg, checks)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to initialise container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	container.Hub.Start()
	if cfg.Scheduler.RearmOnStartup {
		rearmCtx, cancel := context.WithTimeout(ctx, time.Minute)
		armed, err := container.Services.Scheduler.Rearm(rearmCtx)
		cancel()
		if err != nil {
			logger.Error("failed to re-arm pending confirmations", zap.Error(err))
		} else {
			logger.Info("re-armed pending confirmations", zap.Int("count", armed))
		}
	}

	authenticator := container.Authenticator
	svc := container.Services

	invoiceHandlers := handlers.NewInvoiceHandlers(authenticator, svc.Invoices,
		handlers.WithCheckoutRateLimit(cfg.Security.CheckoutRateLimit, cfg.Security.CheckoutRateWindow, nil),
	)
	notificationHandlers := handlers.NewNotificationHandlers(authenticator, svc.Notifications)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, svc.Reviews)
	voucherHandlers := handlers.NewVoucherHandlers(authenticator, svc.Vouchers)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithInvoiceRoutes(invoiceHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithVoucherRoutes(voucherHandlers.Routes),
		handlers.WithRealtime(cfg.Realtime.Path, container.Realtime.Handler()),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("order api listening",
			zap.String("persistence", cfg.Persistence.Driver),
			zap.String("realtimePath", cfg.Realtime.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	// pending timers are dropped here and re-armed from PENDING invoices on the next start
	svc.Scheduler.Stop()
	container.Hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

func newRegistry(cfg config.Config, checks []repositories.DependencyCheck) (repositories.Registry, error) {
	switch cfg.Persistence.Driver {
	case config.PersistenceMemory:
		return memory.NewRegistry(), nil
	case config.PersistenceFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		return firestoreRepo.NewRegistry(provider, checks...)
	default:
		return nil, fmt.Errorf("unsupported persistence driver %q", cfg.Persistence.Driver)
	}
}

func newInvoicePublisher(ctx context.Context, cfg config.Config) (services.InvoiceEventPublisher, func(context.Context) error, error) {
	topicID := strings.TrimSpace(cfg.PubSub.InvoiceEventsTopic)
	projectID := strings.TrimSpace(cfg.PubSub.ProjectID)
	if topicID == "" || projectID == "" {
		return nil, nil, nil
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, err
	}
	topic := client.Topic(topicID)
	publisher, err := jobs.NewPubSubInvoicePublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func(context.Context) error {
		topic.Stop()
		return client.Close()
	}
	return publisher, closeFn, nil
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:     "secretManager",
		Timeout:  time.Second,
		Optional: true,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	opts := append(secrets.OptionsFromEnv(env), secrets.WithLogger(logger.Named("secrets")))
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists config fields that must resolve when their variable points at a
// secret reference.
func requiredSecretNames(env map[string]string) []string {
	if strings.TrimSpace(env["API_REDIS_ADDR"]) != "" && strings.TrimSpace(env["API_REDIS_PASSWORD"]) != "" {
		return []string{"Redis.Password"}
	}
	return nil
}
