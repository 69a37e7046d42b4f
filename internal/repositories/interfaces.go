package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Invoices() InvoiceRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	Vouchers() VoucherRepository
	Notifications() NotificationRepository
	Reviews() ReviewRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Implementations join an outer transaction when fn is already running inside one.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IsNotFound reports whether err carries a RepositoryError classified as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a RepositoryError classified as a conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// InvoiceRepository persists invoices. Invoices are never deleted.
type InvoiceRepository interface {
	Insert(ctx context.Context, invoice domain.Invoice) error
	FindByID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	// UpdateStatus moves the invoice from `from` to `to` only while the stored status still equals
	// `from`. A mismatch returns a RepositoryError with IsConflict.
	UpdateStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, at time.Time) (domain.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) (domain.Page[domain.Invoice], error)
	ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error)
	// CountCreatedSince counts invoices created at or after since, limited to userID when non-empty.
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	StatusCountsSince(ctx context.Context, since time.Time) (map[domain.InvoiceStatus]int, error)
}

// InvoiceSortField enumerates sortable invoice fields.
type InvoiceSortField string

const (
	InvoiceSortCreatedAt InvoiceSortField = "createdAt"
	InvoiceSortUpdatedAt InvoiceSortField = "updatedAt"
	InvoiceSortTotal     InvoiceSortField = "invoice_total"
)

// InvoiceListFilter narrows invoice listings.
type InvoiceListFilter struct {
	UserID string
	Status *domain.InvoiceStatus
	SortBy InvoiceSortField
	Desc   bool
	Page   int
	Limit  int
}

// ProductRepository reads the catalog view used for pricing.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// InventoryRepository reads and adjusts SKU stock.
type InventoryRepository interface {
	// FindSKU returns the exact color+size variant of a product or an InventoryError with
	// InventoryErrorSKUNotFound.
	FindSKU(ctx context.Context, productID, color, size string) (domain.InventorySKU, error)
	// AdjustQuantity adds delta to the SKU quantity. A result below zero fails with
	// InventoryErrorInsufficientStock and leaves the stock untouched.
	AdjustQuantity(ctx context.Context, skuID string, delta int, at time.Time) (domain.InventorySKU, error)
}

// VoucherRepository persists vouchers.
type VoucherRepository interface {
	Insert(ctx context.Context, voucher domain.Voucher) error
	FindByID(ctx context.Context, voucherID string) (domain.Voucher, error)
	// FindActiveByCode returns the ACTIVE voucher with the code owned by userID.
	FindActiveByCode(ctx context.Context, code, userID string) (domain.Voucher, error)
	UpdateUsage(ctx context.Context, voucherID string, usedCount int, status domain.VoucherStatus, at time.Time) error
	ListByUser(ctx context.Context, userID string, status domain.VoucherStatus) ([]domain.Voucher, error)
}

// NotificationRepository persists notifications. Every mutation is scoped to the recipient; a
// notification owned by someone else is reported as not found.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	List(ctx context.Context, filter NotificationListFilter) (domain.Page[domain.Notification], error)
	MarkRead(ctx context.Context, notificationID, recipientID string, at time.Time) (domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error)
	SoftDelete(ctx context.Context, notificationID, recipientID string, at time.Time) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// NotificationListFilter narrows notification listings. An empty RecipientID selects admin broadcast
// rows. Soft-deleted rows are always excluded.
type NotificationListFilter struct {
	RecipientID string
	Type        *domain.NotificationType
	IsRead      *bool
	Desc        bool
	Page        int
	Limit       int
}

// ReviewRepository persists product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	ExistsForInvoiceProduct(ctx context.Context, invoiceID, productID string) (bool, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	RatingCountsSince(ctx context.Context, since time.Time) (map[int]int, error)
}

// HealthRepository aggregates dependency probes for readiness.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
