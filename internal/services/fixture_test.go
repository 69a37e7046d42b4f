package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories/memory"
)

var fixtureStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu    sync.Mutex
	armed []*fakeTimer
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{delay: d, fn: fn}
	f.armed = append(f.armed, timer)
	return timer
}

func (f *fakeTimers) last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.armed) == 0 {
		return nil
	}
	return f.armed[len(f.armed)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []InvoiceEvent
	err    error
}

func (p *recordingPublisher) PublishInvoiceEvent(_ context.Context, event InvoiceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubRealtime struct {
	mu           sync.Mutex
	onlineUsers  map[string]bool
	onlineAdmins map[string]bool
	userSends    []string
	adminSends   []string
	broadcasts   []any
}

func newStubRealtime() *stubRealtime {
	return &stubRealtime{onlineUsers: map[string]bool{}, onlineAdmins: map[string]bool{}}
}

func (s *stubRealtime) SendToUser(userID string, _ any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSends = append(s.userSends, userID)
	return s.onlineUsers[userID]
}

func (s *stubRealtime) SendToAdmin(adminID string, _ any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminSends = append(s.adminSends, adminID)
	return s.onlineAdmins[adminID]
}

func (s *stubRealtime) SendToUsers(userIDs []string, payload any) bool {
	delivered := false
	for _, id := range userIDs {
		if s.SendToUser(id, payload) {
			delivered = true
		}
	}
	return delivered
}

func (s *stubRealtime) BroadcastToAdmins(payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, payload)
	return true
}

func (s *stubRealtime) IsAdminOnline(adminID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineAdmins[adminID]
}

// countingInvoices counts conditional status writes reaching the store.
type countingInvoices struct {
	repositories.InvoiceRepository
	mu      sync.Mutex
	updates int
}

func (c *countingInvoices) UpdateStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, at time.Time) (domain.Invoice, error) {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.InvoiceRepository.UpdateStatus(ctx, invoiceID, from, to, at)
}

func (c *countingInvoices) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

type fixtureOptions struct {
	vouchers func(repositories.VoucherRepository) repositories.VoucherRepository
	realtime RealtimeChannel
}

type fixture struct {
	t        *testing.T
	registry *memory.Registry
	now      time.Time
	ids      int

	timers    *fakeTimers
	events    *recordingPublisher
	realtime  RealtimeChannel
	invoices  *countingInvoices
	inventory InventoryGuard
	vouchers  VoucherLedger
	scheduler ConfirmationScheduler
	notifier  NotificationService
	service   InvoiceService
	reviews   ReviewService
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		registry: memory.NewRegistry(),
		now:      fixtureStart,
		timers:   &fakeTimers{},
		events:   &recordingPublisher{},
		realtime: opts.realtime,
	}
	if f.realtime == nil {
		f.realtime = newStubRealtime()
	}
	clock := func() time.Time { return f.now }
	nextID := func() string {
		f.ids++
		return fmt.Sprintf("%06d", f.ids)
	}

	f.invoices = &countingInvoices{InvoiceRepository: f.registry.Invoices()}
	voucherRepo := f.registry.Vouchers()
	if opts.vouchers != nil {
		voucherRepo = opts.vouchers(voucherRepo)
	}

	var err error
	if f.inventory, err = NewInventoryGuard(InventoryGuardDeps{Inventory: f.registry.Inventory(), Clock: clock}); err != nil {
		t.Fatalf("NewInventoryGuard: %v", err)
	}
	if f.vouchers, err = NewVoucherLedger(VoucherLedgerDeps{Vouchers: voucherRepo, Clock: clock, IDGenerator: nextID}); err != nil {
		t.Fatalf("NewVoucherLedger: %v", err)
	}
	if f.notifier, err = NewNotificationService(NotificationServiceDeps{
		Notifications: f.registry.Notifications(),
		Invoices:      f.registry.Invoices(),
		Reviews:       f.registry.Reviews(),
		Products:      f.registry.Products(),
		Realtime:      f.realtime,
		Clock:         clock,
		IDGenerator:   nextID,
	}); err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	if f.scheduler, err = NewConfirmationScheduler(ConfirmationSchedulerDeps{
		Invoices:  f.invoices,
		Notifier:  f.notifier,
		Events:    f.events,
		Clock:     clock,
		AfterFunc: f.timers.AfterFunc,
	}); err != nil {
		t.Fatalf("NewConfirmationScheduler: %v", err)
	}
	if f.service, err = NewInvoiceService(InvoiceServiceDeps{
		Invoices:    f.invoices,
		Products:    f.registry.Products(),
		Inventory:   f.inventory,
		Vouchers:    f.vouchers,
		Scheduler:   f.scheduler,
		Notifier:    f.notifier,
		Events:      f.events,
		UnitOfWork:  f.registry,
		Clock:       clock,
		IDGenerator: nextID,
	}); err != nil {
		t.Fatalf("NewInvoiceService: %v", err)
	}
	if f.reviews, err = NewReviewService(ReviewServiceDeps{
		Reviews:     f.registry.Reviews(),
		Invoices:    f.registry.Invoices(),
		Vouchers:    f.vouchers,
		Notifier:    f.notifier,
		UnitOfWork:  f.registry,
		Clock:       clock,
		IDGenerator: nextID,
	}); err != nil {
		t.Fatalf("NewReviewService: %v", err)
	}
	t.Cleanup(f.scheduler.Stop)

	f.registry.PutProduct(domain.Product{ID: "prod_1", Name: "Linen Shirt", Price: decimal.NewFromInt(100), Images: []string{"shirt.png"}})
	f.registry.PutSKU(domain.InventorySKU{ID: "sku_1", ProductID: "prod_1", Color: "black", Size: "M", Quantity: 5})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) stock() int {
	f.t.Helper()
	sku, err := f.registry.Inventory().FindSKU(context.Background(), "prod_1", "black", "M")
	if err != nil {
		f.t.Fatalf("FindSKU: %v", err)
	}
	return sku.Quantity
}

func (f *fixture) invoiceCount() int {
	f.t.Helper()
	page, err := f.registry.Invoices().List(context.Background(), repositories.InvoiceListFilter{Page: 1, Limit: 100})
	if err != nil {
		f.t.Fatalf("List invoices: %v", err)
	}
	return page.TotalRecords
}

func (f *fixture) notificationsFor(recipient string) []domain.Notification {
	f.t.Helper()
	page, err := f.registry.Notifications().List(context.Background(), repositories.NotificationListFilter{
		RecipientID: recipient,
		Page:        1,
		Limit:       100,
	})
	if err != nil {
		f.t.Fatalf("List notifications: %v", err)
	}
	return page.Items
}

func checkoutCommand(quantity int, voucherCode string) CreateInvoiceCommand {
	return CreateInvoiceCommand{
		UserID:        "user_1",
		ContactName:   "Nguyen Van A",
		ContactPhone:  "0901234567",
		Shipping:      Address{Line: "1 Vo Van Ngan", District: "Thu Duc", Province: "Ho Chi Minh", Country: "VN"},
		PaymentMethod: domain.PaymentMethodCOD,
		Lines:         []InvoiceLineInput{{ProductID: "prod_1", Color: "black", Size: "M", Quantity: quantity}},
		VoucherCode:   voucherCode,
	}
}

func singleUseVoucher(id, code string) domain.Voucher {
	return domain.Voucher{
		ID:        id,
		Code:      code,
		Type:      domain.VoucherTypeFixedAmount,
		Value:     decimal.NewFromInt(30),
		StartDate: fixtureStart.Add(-time.Hour),
		EndDate:   fixtureStart.Add(24 * time.Hour),
		Count:     1,
		UserID:    "user_1",
		Status:    domain.VoucherStatusActive,
		Source:    domain.VoucherSourcePromotion,
	}
}
