package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// ProductRepository is the in-memory repositories.ProductRepository.
type ProductRepository struct {
	store *Store
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	product, ok := r.store.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.get", "product %s not found", productID)
	}
	return product, nil
}

// InventoryRepository is the in-memory repositories.InventoryRepository.
type InventoryRepository struct {
	store *Store
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

func (r *InventoryRepository) FindSKU(_ context.Context, productID, color, size string) (domain.InventorySKU, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, sku := range r.store.skus {
		if sku.ProductID == productID && strings.EqualFold(sku.Color, color) && strings.EqualFold(sku.Size, size) {
			return sku, nil
		}
	}
	err := repositories.NewInventoryError(repositories.InventoryErrorSKUNotFound,
		fmt.Sprintf("no sku for product %s color %s size %s", productID, color, size), nil)
	err.Op = "inventory.find_sku"
	return domain.InventorySKU{}, err
}

func (r *InventoryRepository) AdjustQuantity(ctx context.Context, skuID string, delta int, at time.Time) (domain.InventorySKU, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sku, ok := r.store.skus[skuID]
	if !ok {
		err := repositories.NewInventoryError(repositories.InventoryErrorSKUNotFound, fmt.Sprintf("sku %s not found", skuID), nil)
		err.Op = "inventory.adjust"
		return domain.InventorySKU{}, err
	}
	if sku.Quantity+delta < 0 {
		err := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock,
			fmt.Sprintf("sku %s has %d, cannot remove %d", skuID, sku.Quantity, -delta), nil)
		err.Op = "inventory.adjust"
		return domain.InventorySKU{}, err
	}
	sku.Quantity += delta
	sku.UpdatedAt = at
	r.store.skus[skuID] = sku
	r.store.onRollback(ctx, func() {
		current := r.store.skus[skuID]
		current.Quantity -= delta
		r.store.skus[skuID] = current
	})
	return sku, nil
}
