package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

var (
	// ErrSKUNotFound indicates no variant matches the requested product, color, and size.
	ErrSKUNotFound = errors.New("inventory: sku not found")
	// ErrInsufficientStock indicates a line asks for more units than the SKU holds.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// StockShortageError reports the variant that could not cover a line. Available and Requested are
// zero when the shortage was detected by the store rather than by a read.
type StockShortageError struct {
	ProductID string
	Color     string
	Size      string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("%s: not enough stock for product %s", ErrInsufficientStock, e.ProductID)
}

func (e *StockShortageError) Unwrap() error { return ErrInsufficientStock }

// InventoryGuardDeps bundles collaborators required to construct the inventory guard.
type InventoryGuardDeps struct {
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryGuard struct {
	inventory repositories.InventoryRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryGuard wires dependencies into a concrete InventoryGuard implementation.
func NewInventoryGuard(deps InventoryGuardDeps) (InventoryGuard, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory guard: inventory repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryGuard{
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (g *inventoryGuard) AvailableQuantity(ctx context.Context, productID, color, size string) (int, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, fmt.Errorf("%w: product id is required", ErrSKUNotFound)
	}
	sku, err := g.inventory.FindSKU(ctx, productID, strings.TrimSpace(color), strings.TrimSpace(size))
	if err != nil {
		return 0, mapInventoryError(err, productID)
	}
	return sku.Quantity, nil
}

func (g *inventoryGuard) EnsureAvailable(ctx context.Context, lines []InvoiceLineInput) error {
	for _, line := range mergeLines(lines) {
		available, err := g.AvailableQuantity(ctx, line.ProductID, line.Color, line.Size)
		if err != nil {
			return err
		}
		if line.Quantity > available {
			return &StockShortageError{ProductID: line.ProductID, Color: line.Color, Size: line.Size, Requested: line.Quantity, Available: available}
		}
	}
	return nil
}

// Reserve re-reads and decrements every SKU. It must run inside the invoice creation transaction so a
// concurrent order that consumed the stock aborts the whole creation.
func (g *inventoryGuard) Reserve(ctx context.Context, lines []InvoiceLineInput) error {
	now := g.clock()
	for _, line := range mergeLines(lines) {
		sku, err := g.inventory.FindSKU(ctx, line.ProductID, line.Color, line.Size)
		if err != nil {
			return mapInventoryError(err, line.ProductID)
		}
		if sku.Quantity < line.Quantity {
			return &StockShortageError{ProductID: line.ProductID, Color: line.Color, Size: line.Size, Requested: line.Quantity, Available: sku.Quantity}
		}
		if _, err := g.inventory.AdjustQuantity(ctx, sku.ID, -line.Quantity, now); err != nil {
			return mapInventoryError(err, line.ProductID)
		}
	}
	return nil
}

func (g *inventoryGuard) Restock(ctx context.Context, invoice Invoice) error {
	now := g.clock()
	lines := make([]InvoiceLineInput, 0, len(invoice.Products))
	for _, product := range invoice.Products {
		lines = append(lines, InvoiceLineInput{
			ProductID: product.ProductID,
			Color:     product.Color,
			Size:      product.Size,
			Quantity:  product.Quantity,
		})
	}
	for _, line := range mergeLines(lines) {
		sku, err := g.inventory.FindSKU(ctx, line.ProductID, line.Color, line.Size)
		if err != nil {
			if repositories.IsNotFound(err) {
				// variant was retired after purchase; nothing to return the units to
				g.logger(ctx, "inventory.restock.skipped", map[string]any{
					"invoiceId": invoice.ID,
					"productId": line.ProductID,
					"color":     line.Color,
					"size":      line.Size,
				})
				continue
			}
			return mapInventoryError(err, line.ProductID)
		}
		if _, err := g.inventory.AdjustQuantity(ctx, sku.ID, line.Quantity, now); err != nil {
			return mapInventoryError(err, line.ProductID)
		}
	}
	return nil
}

// mergeLines sums quantities of lines addressing the same SKU, keeping first-seen order.
func mergeLines(lines []InvoiceLineInput) []InvoiceLineInput {
	merged := make([]InvoiceLineInput, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		key := line.ProductID + "\x00" + strings.ToLower(strings.TrimSpace(line.Color)) + "\x00" + strings.ToUpper(strings.TrimSpace(line.Size))
		if i, ok := index[key]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func mapInventoryError(err error, productID string) error {
	if err == nil {
		return nil
	}
	if code, ok := repositories.InventoryErrorCodeOf(err); ok {
		switch code {
		case repositories.InventoryErrorSKUNotFound:
			return fmt.Errorf("%w: product %s has no matching variant", ErrSKUNotFound, productID)
		case repositories.InventoryErrorInsufficientStock:
			return &StockShortageError{ProductID: productID}
		}
	}
	if repositories.IsNotFound(err) {
		return fmt.Errorf("%w: product %s has no matching variant", ErrSKUNotFound, productID)
	}
	return fmt.Errorf("inventory: %w", err)
}
