package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view needed to price an order line.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Images     []string
	CategoryID string
	Promotion  *ProductPromotion
}

// PrimaryImage returns the first image, or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductPromotion is the category promotion snapshotted onto a product.
type ProductPromotion struct {
	PromotionID string
	Name        string
	Percentage  decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
}

// InventorySKU is the stock of one product variant.
type InventorySKU struct {
	ID        string
	ProductID string
	Color     string
	Size      string
	Quantity  int
	UpdatedAt time.Time
}
