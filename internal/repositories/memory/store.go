// Package memory provides process-local repositories used by tests and the memory persistence driver.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

type errorKind int

const (
	kindNotFound errorKind = iota + 1
	kindConflict
)

// Error implements repositories.RepositoryError for the in-memory store.
type Error struct {
	op   string
	msg  string
	kind errorKind
}

var _ repositories.RepositoryError = (*Error)(nil)

func (e *Error) Error() string       { return fmt.Sprintf("%s: %s", e.op, e.msg) }
func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return false }

func notFound(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), kind: kindNotFound}
}

func conflict(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), kind: kindConflict}
}

// Store holds every collection behind one lock. Transactions are serialised and roll back by
// replaying an undo log of their own writes, so writes made outside the transaction survive.
type Store struct {
	mu            sync.RWMutex
	txMu          sync.Mutex
	invoices      map[string]domain.Invoice
	products      map[string]domain.Product
	skus          map[string]domain.InventorySKU
	vouchers      map[string]domain.Voucher
	notifications map[string]domain.Notification
	reviews       map[string]domain.Review
}

// Registry exposes the store through the repositories.Registry contract.
type Registry struct {
	store *Store
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{store: &Store{
		invoices:      make(map[string]domain.Invoice),
		products:      make(map[string]domain.Product),
		skus:          make(map[string]domain.InventorySKU),
		vouchers:      make(map[string]domain.Voucher),
		notifications: make(map[string]domain.Notification),
		reviews:       make(map[string]domain.Review),
	}}
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Invoices() repositories.InvoiceRepository { return &InvoiceRepository{store: r.store} }
func (r *Registry) Products() repositories.ProductRepository { return &ProductRepository{store: r.store} }
func (r *Registry) Inventory() repositories.InventoryRepository {
	return &InventoryRepository{store: r.store}
}
func (r *Registry) Vouchers() repositories.VoucherRepository { return &VoucherRepository{store: r.store} }
func (r *Registry) Notifications() repositories.NotificationRepository {
	return &NotificationRepository{store: r.store}
}
func (r *Registry) Reviews() repositories.ReviewRepository { return &ReviewRepository{store: r.store} }

func (r *Registry) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}})
	return repo
}

// RunInTx implements repositories.UnitOfWork.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.RunInTx(ctx, fn)
}

// PutProduct stores a catalog product.
func (r *Registry) PutProduct(product domain.Product) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.products[product.ID] = product
}

// PutSKU stores an inventory variant.
func (r *Registry) PutSKU(sku domain.InventorySKU) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.skus[sku.ID] = sku
}

// PutVoucher stores a voucher.
func (r *Registry) PutVoucher(voucher domain.Voucher) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.vouchers[voucher.ID] = voucher
}

// PutInvoice stores an invoice as is.
func (r *Registry) PutInvoice(invoice domain.Invoice) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.invoices[invoice.ID] = cloneInvoice(invoice)
}

// PutReview stores a review as is.
func (r *Registry) PutReview(review domain.Review) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.reviews[review.ID] = review
}

type txKey struct{}

// txLog collects the undo steps of one transaction. Steps are appended and replayed under Store.mu.
type txLog struct {
	undo []func()
}

// RunInTx runs fn with its writes reverted if it returns an error. Nested calls join the outer
// transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("memory: unit of work function is nil")
	}
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.rollback(log)
		return err
	}
	return nil
}

func (s *Store) rollback(log *txLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(log.undo) - 1; i >= 0; i-- {
		log.undo[i]()
	}
}

// onRollback registers undo when ctx carries a transaction. Callers hold s.mu.
func (s *Store) onRollback(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok {
		log.undo = append(log.undo, undo)
	}
}

func cloneInvoice(invoice domain.Invoice) domain.Invoice {
	invoice.Products = append([]domain.InvoiceLine(nil), invoice.Products...)
	if invoice.AppliedVoucher != nil {
		applied := *invoice.AppliedVoucher
		invoice.AppliedVoucher = &applied
	}
	return invoice
}
