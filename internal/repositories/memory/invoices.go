package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/pagination"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// InvoiceRepository is the in-memory repositories.InvoiceRepository.
type InvoiceRepository struct {
	store *Store
}

var _ repositories.InvoiceRepository = (*InvoiceRepository)(nil)

func (r *InvoiceRepository) Insert(ctx context.Context, invoice domain.Invoice) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.invoices[invoice.ID]; exists {
		return conflict("invoices.insert", "invoice %s already exists", invoice.ID)
	}
	r.store.invoices[invoice.ID] = cloneInvoice(invoice)
	r.store.onRollback(ctx, func() { delete(r.store.invoices, invoice.ID) })
	return nil
}

func (r *InvoiceRepository) FindByID(_ context.Context, invoiceID string) (domain.Invoice, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	invoice, ok := r.store.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, notFound("invoices.get", "invoice %s not found", invoiceID)
	}
	return cloneInvoice(invoice), nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, at time.Time) (domain.Invoice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	invoice, ok := r.store.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, notFound("invoices.update_status", "invoice %s not found", invoiceID)
	}
	if invoice.Status != from {
		return domain.Invoice{}, conflict("invoices.update_status", "invoice %s is %s, expected %s", invoiceID, invoice.Status, from)
	}
	previous := invoice
	invoice = cloneInvoice(invoice)
	invoice.Status = to
	invoice.UpdatedAt = at
	r.store.invoices[invoiceID] = invoice
	r.store.onRollback(ctx, func() {
		if current, ok := r.store.invoices[invoiceID]; ok && current.Status == to && current.UpdatedAt.Equal(at) {
			r.store.invoices[invoiceID] = previous
		}
	})
	return cloneInvoice(invoice), nil
}

func (r *InvoiceRepository) List(_ context.Context, filter repositories.InvoiceListFilter) (domain.Page[domain.Invoice], error) {
	matched := r.collect(func(invoice domain.Invoice) bool {
		if filter.UserID != "" && invoice.UserID != filter.UserID {
			return false
		}
		return filter.Status == nil || invoice.Status == *filter.Status
	})

	slices.SortFunc(matched, func(a, b domain.Invoice) int {
		var c int
		switch filter.SortBy {
		case repositories.InvoiceSortUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case repositories.InvoiceSortTotal:
			c = a.Total.Cmp(b.Total)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if filter.Desc {
			return -c
		}
		return c
	})

	return paginate(matched, filter.Page, filter.Limit), nil
}

func (r *InvoiceRepository) ListByStatus(_ context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error) {
	matched := r.collect(func(invoice domain.Invoice) bool { return invoice.Status == status })
	slices.SortFunc(matched, func(a, b domain.Invoice) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return matched, nil
}

func (r *InvoiceRepository) CountCreatedSince(_ context.Context, userID string, since time.Time) (int, error) {
	return len(r.collect(func(invoice domain.Invoice) bool {
		return (userID == "" || invoice.UserID == userID) && !invoice.CreatedAt.Before(since)
	})), nil
}

func (r *InvoiceRepository) StatusCountsSince(_ context.Context, since time.Time) (map[domain.InvoiceStatus]int, error) {
	counts := make(map[domain.InvoiceStatus]int)
	for _, invoice := range r.collect(func(invoice domain.Invoice) bool { return !invoice.CreatedAt.Before(since) }) {
		counts[invoice.Status]++
	}
	return counts, nil
}

func (r *InvoiceRepository) collect(keep func(domain.Invoice) bool) []domain.Invoice {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Invoice
	for _, invoice := range r.store.invoices {
		if keep(invoice) {
			out = append(out, cloneInvoice(invoice))
		}
	}
	return out
}

func paginate[T any](items []T, page, limit int) domain.Page[T] {
	params := pagination.Params{Page: page, Limit: limit}
	start, end := params.Window(len(items))
	return domain.Page[T]{
		Items:        items[start:end],
		TotalRecords: len(items),
		TotalPages:   pagination.TotalPages(len(items), limit),
		PageSize:     limit,
		CurrentPage:  page,
	}
}
