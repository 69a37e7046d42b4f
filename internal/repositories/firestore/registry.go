// Package firestore implements the repository contracts on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	invoicesCollection      = "invoices"
	productsCollection      = "products"
	inventoryCollection     = "inventories"
	vouchersCollection      = "vouchers"
	notificationsCollection = "notifications"
	reviewsCollection       = "reviews"
)

// Registry implements repositories.Registry on a Firestore provider.
type Registry struct {
	provider      *pfirestore.Provider
	uow           *pfirestore.UnitOfWork
	invoices      *InvoiceRepository
	products      *ProductRepository
	inventory     *InventoryRepository
	vouchers      *VoucherRepository
	notifications *NotificationRepository
	reviews       *ReviewRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry binds every repository to the provider. Extra readiness checks are probed alongside
// Firestore.
func NewRegistry(provider *pfirestore.Provider, checks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	uow := pfirestore.NewUnitOfWork(provider)

	probe := repositories.DependencyCheck{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			return provider.Ping(ctx, invoicesCollection)
		},
	}
	health, err := repositories.NewDependencyHealthRepository(append([]repositories.DependencyCheck{probe}, checks...))
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		uow:           uow,
		invoices:      &InvoiceRepository{base: pfirestore.NewBaseRepository[invoiceDocument](provider, invoicesCollection), uow: uow},
		products:      &ProductRepository{base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection)},
		inventory:     &InventoryRepository{base: pfirestore.NewBaseRepository[skuDocument](provider, inventoryCollection), uow: uow},
		vouchers:      &VoucherRepository{base: pfirestore.NewBaseRepository[voucherDocument](provider, vouchersCollection)},
		notifications: &NotificationRepository{base: pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection), uow: uow},
		reviews:       &ReviewRepository{base: pfirestore.NewBaseRepository[reviewDocument](provider, reviewsCollection)},
		health:        health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Invoices() repositories.InvoiceRepository           { return r.invoices }
func (r *Registry) Products() repositories.ProductRepository           { return r.products }
func (r *Registry) Inventory() repositories.InventoryRepository        { return r.inventory }
func (r *Registry) Vouchers() repositories.VoucherRepository           { return r.vouchers }
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *Registry) Reviews() repositories.ReviewRepository             { return r.reviews }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }

// PutProduct stores a catalog product.
func (r *Registry) PutProduct(ctx context.Context, product domain.Product) error {
	return r.products.Put(ctx, product)
}

// PutSKU stores an inventory variant.
func (r *Registry) PutSKU(ctx context.Context, sku domain.InventorySKU) error {
	return r.inventory.Put(ctx, sku)
}

// PutVoucher stores a voucher, failing when its id is already taken.
func (r *Registry) PutVoucher(ctx context.Context, voucher domain.Voucher) error {
	return r.vouchers.Insert(ctx, voucher)
}

// RunInTx implements repositories.UnitOfWork.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}

// Amounts are stored as numbers so listings can order by them; every amount carries at most two
// decimal places.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func fromMoney(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
