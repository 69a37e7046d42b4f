package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Invoice               = domain.Invoice
	InvoiceLine           = domain.InvoiceLine
	InvoiceStatus         = domain.InvoiceStatus
	PaymentMethod         = domain.PaymentMethod
	Address               = domain.Address
	Product               = domain.Product
	Voucher               = domain.Voucher
	AppliedVoucher        = domain.AppliedVoucher
	Notification          = domain.Notification
	NotificationType      = domain.NotificationType
	Review                = domain.Review
	ScheduledConfirmation = domain.ScheduledConfirmation
	NewEntitiesCount      = domain.NewEntitiesCount
	AdminMetrics          = domain.AdminMetrics
	SystemHealthReport    = domain.SystemHealthReport
)

// Actor identifies the caller of an operation.
type Actor struct {
	ID    string
	Admin bool
}

// InvoiceService drives the invoice lifecycle from checkout to delivery.
type InvoiceService interface {
	Create(ctx context.Context, cmd CreateInvoiceCommand) (CreateInvoiceResult, error)
	Get(ctx context.Context, invoiceID string, actor Actor) (Invoice, error)
	List(ctx context.Context, query InvoiceListQuery) (domain.Page[Invoice], error)
	UpdateStatus(ctx context.Context, invoiceID string, status InvoiceStatus, actor Actor) (Invoice, error)
	ConfirmOrder(ctx context.Context, invoiceID string, actor Actor) (Invoice, error)
	CancelOrder(ctx context.Context, invoiceID string, actor Actor) (Invoice, error)
	ListScheduled(ctx context.Context) []ScheduledConfirmation
	ConfirmationTimeout(ctx context.Context, invoiceID string, actor Actor) (ScheduledConfirmation, error)
}

// ConfirmationScheduler auto-confirms invoices that stay PENDING past the confirmation delay.
type ConfirmationScheduler interface {
	Schedule(invoiceID string, createdAt time.Time)
	// Cancel stops the job for invoiceID and reports whether one was armed.
	Cancel(invoiceID string) bool
	ListScheduled() []ScheduledConfirmation
	GetTimeoutFor(ctx context.Context, invoiceID string) (time.Time, error)
	Rearm(ctx context.Context) (int, error)
	Stop()
}

// InventoryGuard checks and moves SKU stock for invoice lines.
type InventoryGuard interface {
	AvailableQuantity(ctx context.Context, productID, color, size string) (int, error)
	EnsureAvailable(ctx context.Context, lines []InvoiceLineInput) error
	Reserve(ctx context.Context, lines []InvoiceLineInput) error
	Restock(ctx context.Context, invoice Invoice) error
}

// VoucherLedger validates, redeems, and issues vouchers.
type VoucherLedger interface {
	ApplyVoucher(ctx context.Context, code, userID string, amount decimal.Decimal) (VoucherApplication, error)
	MarkVoucherAsUsed(ctx context.Context, voucherID string) error
	IssueReviewVoucher(ctx context.Context, userID, reviewID string) (Voucher, error)
	ListUserVouchers(ctx context.Context, userID string) ([]Voucher, error)
}

// InvoiceNotifier receives invoice lifecycle notifications. Implementations never fail the caller.
type InvoiceNotifier interface {
	NotifyNewInvoice(ctx context.Context, invoice Invoice) DeliveryReport
	NotifyInvoiceStatusChange(ctx context.Context, invoice Invoice, previous InvoiceStatus) DeliveryReport
}

// ReviewNotifier receives review and reward voucher notifications.
type ReviewNotifier interface {
	NotifyNewReview(ctx context.Context, review Review) DeliveryReport
	NotifyVoucherIssued(ctx context.Context, voucher Voucher) DeliveryReport
}

// NotificationService persists notifications and routes them to realtime channels.
type NotificationService interface {
	InvoiceNotifier
	ReviewNotifier
	SendSystemNotification(ctx context.Context, cmd SystemNotificationCommand) (int, error)
	GetUserNotifications(ctx context.Context, query UserNotificationQuery) (domain.Page[Notification], error)
	GetAdminNotifications(ctx context.Context, query AdminNotificationQuery) (domain.Page[Notification], error)
	MarkAsRead(ctx context.Context, notificationID, recipientID string) (Notification, error)
	MarkAllAsRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, notificationID, recipientID string) error
	GetUnreadCount(ctx context.Context, recipientID string) (int, error)
	GetNewEntitiesCount(ctx context.Context, actor Actor, since *time.Time) (NewEntitiesCount, error)
	GetAdminMetrics(ctx context.Context, timeframe string) (AdminMetrics, error)
}

// ReviewService records product reviews for delivered invoices.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (CreateReviewResult, error)
}

// SystemService reports service health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// RealtimeChannel pushes payloads to connected clients. Every method reports whether the payload was
// handed to at least one live connection; an unavailable channel returns false.
type RealtimeChannel interface {
	SendToUser(userID string, payload any) bool
	SendToAdmin(adminID string, payload any) bool
	SendToUsers(userIDs []string, payload any) bool
	BroadcastToAdmins(payload any) bool
	IsAdminOnline(adminID string) bool
}

// CustomerDirectory resolves customer display names for notification payloads.
type CustomerDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Locker acquires short-lived distributed locks. acquired is false when another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// InvoiceEventPublisher publishes invoice domain events for downstream consumers.
type InvoiceEventPublisher interface {
	PublishInvoiceEvent(ctx context.Context, event InvoiceEvent) error
}

// InvoiceEvent captures metadata for emitted invoice domain events.
type InvoiceEvent struct {
	Type           string
	InvoiceID      string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	Total          string
	OccurredAt     time.Time
}

// CreateInvoiceCommand carries checkout input.
type CreateInvoiceCommand struct {
	UserID        string
	ContactName   string
	ContactPhone  string
	Shipping      Address
	Note          string
	PaymentMethod PaymentMethod
	Lines         []InvoiceLineInput
	VoucherCode   string
}

// InvoiceLineInput identifies a requested SKU and quantity.
type InvoiceLineInput struct {
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// CreateInvoiceResult is returned after the invoice is committed.
type CreateInvoiceResult struct {
	InvoiceID string
	Total     decimal.Decimal
	Invoice   Invoice
}

// InvoiceListQuery filters invoice listings. A non-admin actor only sees their own invoices.
type InvoiceListQuery struct {
	Actor  Actor
	UserID string
	Status string
	SortBy string
	Desc   bool
	Page   int
	Limit  int
}

// VoucherApplication is the outcome of applying a voucher code to an amount.
type VoucherApplication struct {
	Applied     bool
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
	Voucher     *AppliedVoucher
}

// PricedLine is an invoice line priced against the product's current promotion.
type PricedLine struct {
	UnitPrice       decimal.Decimal
	DiscountedPrice decimal.Decimal
	SubTotal        decimal.Decimal
	Promotion       *domain.LinePromotion
}

// DeliveryReport describes how far a notification got. Err is set when persistence failed.
type DeliveryReport struct {
	NotificationID string
	Persisted      bool
	AdminBroadcast bool
	UserDelivered  bool
	Err            error
}

// SystemNotificationCommand addresses a SYSTEM notification to users and admins.
type SystemNotificationCommand struct {
	UserIDs  []string
	AdminIDs []string
	SenderID string
	Message  string
	Data     map[string]any
}

// UserNotificationQuery lists a recipient's notifications.
type UserNotificationQuery struct {
	UserID string
	IsRead *bool
	Sort   string
	Page   int
	Limit  int
}

// AdminNotificationQuery lists admin broadcast notifications. Type "ALL" or empty disables the filter.
type AdminNotificationQuery struct {
	Type   string
	IsRead *bool
	Page   int
	Limit  int
}

// CreateReviewCommand carries review input.
type CreateReviewCommand struct {
	UserID    string
	ProductID string
	InvoiceID string
	Rating    int
	Content   string
}

// CreateReviewResult returns the stored review and the reward voucher, if one was issued.
type CreateReviewResult struct {
	Review  Review
	Voucher *Voucher
}
