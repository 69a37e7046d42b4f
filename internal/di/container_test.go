package di

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/config"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories/memory"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return nil, errors.New("not used")
}

type stubTimer struct{ stopped bool }

func (t *stubTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type timerRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *timerRecorder) AfterFunc(d time.Duration, _ func()) services.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return &stubTimer{}
}

func testConfig() config.Config {
	return config.Config{
		Persistence: config.PersistenceConfig{Driver: config.PersistenceMemory},
		Scheduler:   config.SchedulerConfig{ConfirmationDelay: 30 * time.Minute},
		Realtime:    config.RealtimeConfig{Path: "/ws", SendBuffer: 8},
		Security:    config.SecurityConfig{Environment: "test"},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig(), nil); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestNewContainerWiresCheckoutThroughScheduler(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	reg := memory.NewRegistry()
	reg.PutProduct(domain.Product{ID: "prod_1", Name: "Linen Shirt", Price: decimal.NewFromInt(100)})
	reg.PutSKU(domain.InventorySKU{ID: "sku_1", ProductID: "prod_1", Color: "black", Size: "M", Quantity: 3})

	timers := &timerRecorder{}
	container, err := NewContainer(context.Background(), testConfig(), reg,
		WithTokenVerifier(stubVerifier{}),
		WithClock(func() time.Time { return now }),
		WithAfterFunc(timers.AfterFunc),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer container.Close(context.Background())

	if container.Realtime == nil || container.Authenticator == nil || container.Services.System == nil {
		t.Fatalf("expected realtime, authenticator and system service to be wired")
	}

	result, err := container.Services.Invoices.Create(context.Background(), services.CreateInvoiceCommand{
		UserID:        "user_1",
		ContactName:   "Nguyen Van A",
		ContactPhone:  "0901234567",
		Shipping:      services.Address{Line: "1 Vo Van Ngan", District: "Thu Duc", Province: "Ho Chi Minh", Country: "VN"},
		PaymentMethod: domain.PaymentMethodCOD,
		Lines:         []services.InvoiceLineInput{{ProductID: "prod_1", Color: "black", Size: "M", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !result.Total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total 200, got %s", result.Total)
	}

	scheduled := container.Services.Invoices.ListScheduled(context.Background())
	if len(scheduled) != 1 || scheduled[0].InvoiceID != result.InvoiceID {
		t.Fatalf("expected invoice to be scheduled, got %+v", scheduled)
	}
	if len(timers.delays) != 1 || timers.delays[0] != 30*time.Minute {
		t.Fatalf("expected configured delay, got %v", timers.delays)
	}

	report, err := container.Services.System.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Environment != "test" {
		t.Fatalf("expected environment from config, got %q", report.Environment)
	}
}

func TestContainerCloseRunsClosersInReverse(t *testing.T) {
	var order []string
	closer := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	boom := errors.New("boom")

	container, err := NewContainer(context.Background(), testConfig(), memory.NewRegistry(),
		WithTokenVerifier(stubVerifier{}),
		WithCloser(closer("pubsub", nil)),
		WithCloser(closer("redis", boom)),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	err = container.Close(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected closer error, got %v", err)
	}
	if len(order) != 2 || order[0] != "redis" || order[1] != "pubsub" {
		t.Fatalf("unexpected close order %v", order)
	}
	if scheduled := container.Services.Scheduler.ListScheduled(); len(scheduled) != 0 {
		t.Fatalf("expected scheduler to be stopped, got %+v", scheduled)
	}
}
