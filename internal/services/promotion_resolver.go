package services

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PromotionResolver prices invoice lines against a product's promotion. It has no side effects.
type PromotionResolver struct{}

// Resolve prices quantity units of product at now. A promotion applies when it has an id and now
// lies within its window, bounds included.
func (PromotionResolver) Resolve(product Product, quantity int, now time.Time) PricedLine {
	line := PricedLine{
		UnitPrice:       product.Price,
		DiscountedPrice: product.Price,
	}
	if promo := product.Promotion; promotionActive(promo, now) {
		discount := round2(product.Price.Mul(promo.Percentage).Div(hundred))
		line.DiscountedPrice = product.Price.Sub(discount)
		line.Promotion = &domain.LinePromotion{
			PromotionID:        promo.PromotionID,
			Name:               promo.Name,
			DiscountPercentage: promo.Percentage,
			DiscountAmount:     discount,
		}
	}
	line.SubTotal = line.DiscountedPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return line
}

func promotionActive(promo *domain.ProductPromotion, now time.Time) bool {
	if promo == nil || promo.PromotionID == "" {
		return false
	}
	return !now.Before(promo.StartDate) && !now.After(promo.EndDate)
}

func round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
