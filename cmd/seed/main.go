// Command seed loads catalog, inventory and voucher fixtures into Firestore for local and emulator
// environments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/config"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/observability"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
	firestoreRepo "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories/firestore"
)

// fixtureSink receives decoded fixtures.
type fixtureSink interface {
	PutProduct(ctx context.Context, product domain.Product) error
	PutSKU(ctx context.Context, sku domain.InventorySKU) error
	PutVoucher(ctx context.Context, voucher domain.Voucher) error
}

func main() {
	path := flag.String("file", "cmd/seed/testdata/fixtures.yaml", "fixture file to load")
	envFile := flag.String("env", ".env", "dotenv file consulted for configuration")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(ctx, config.WithEnvFile(*envFile))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if cfg.Persistence.Driver != config.PersistenceFirestore {
		logger.Fatal("seed writes to firestore only", zap.String("driver", cfg.Persistence.Driver))
	}

	file, err := os.Open(*path)
	if err != nil {
		logger.Fatal("failed to open fixtures", zap.Error(err))
	}
	defer file.Close()

	data, err := decodeFixtures(file, time.Now().UTC())
	if err != nil {
		logger.Fatal("invalid fixtures", zap.String("file", *path), zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestoreRepo.NewRegistry(provider)
	if err != nil {
		logger.Fatal("failed to initialise firestore registry", zap.Error(err))
	}
	defer func() {
		if err := registry.Close(context.Background()); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	written, skipped, err := load(ctx, registry, data)
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete",
		zap.String("projectId", cfg.Firestore.ProjectID),
		zap.Int("written", written),
		zap.Int("skippedVouchers", skipped),
	)
}

// load writes every fixture. Products and SKUs are upserted; vouchers that already exist are left
// untouched so usage counters survive re-runs.
func load(ctx context.Context, sink fixtureSink, data fixtures) (written, skipped int, err error) {
	for _, product := range data.Products {
		if err := sink.PutProduct(ctx, product); err != nil {
			return written, skipped, fmt.Errorf("product %s: %w", product.ID, err)
		}
		written++
	}
	for _, sku := range data.SKUs {
		if err := sink.PutSKU(ctx, sku); err != nil {
			return written, skipped, fmt.Errorf("sku %s: %w", sku.ID, err)
		}
		written++
	}
	for _, voucher := range data.Vouchers {
		if err := sink.PutVoucher(ctx, voucher); err != nil {
			if repositories.IsConflict(err) {
				skipped++
				continue
			}
			return written, skipped, fmt.Errorf("voucher %s: %w", voucher.ID, err)
		}
		written++
	}
	return written, skipped, nil
}
