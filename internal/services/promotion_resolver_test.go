package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

func TestPromotionResolver(t *testing.T) {
	window := &domain.ProductPromotion{
		PromotionID: "promo_1",
		Name:        "Spring sale",
		Percentage:  decimal.NewFromFloat(12.5),
		StartDate:   fixtureStart,
		EndDate:     fixtureStart.Add(48 * time.Hour),
	}
	product := domain.Product{ID: "prod_1", Price: decimal.RequireFromString("99.99"), Promotion: window}

	cases := []struct {
		name       string
		product    domain.Product
		at         time.Time
		discounted string
		subtotal   string
		promoted   bool
	}{
		{name: "inside window", product: product, at: fixtureStart.Add(time.Hour), discounted: "87.49", subtotal: "262.47", promoted: true},
		{name: "start bound", product: product, at: fixtureStart, discounted: "87.49", subtotal: "262.47", promoted: true},
		{name: "end bound", product: product, at: window.EndDate, discounted: "87.49", subtotal: "262.47", promoted: true},
		{name: "before window", product: product, at: fixtureStart.Add(-time.Second), discounted: "99.99", subtotal: "299.97"},
		{name: "after window", product: product, at: window.EndDate.Add(time.Second), discounted: "99.99", subtotal: "299.97"},
		{name: "no promotion", product: domain.Product{Price: decimal.NewFromInt(100)}, at: fixtureStart, discounted: "100", subtotal: "300"},
		{
			name:       "promotion without id",
			product:    domain.Product{Price: decimal.NewFromInt(100), Promotion: &domain.ProductPromotion{Percentage: decimal.NewFromInt(50), StartDate: fixtureStart, EndDate: fixtureStart.Add(time.Hour)}},
			at:         fixtureStart,
			discounted: "100",
			subtotal:   "300",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := PromotionResolver{}.Resolve(tc.product, 3, tc.at)
			assert.True(t, line.UnitPrice.Equal(tc.product.Price))
			assert.Equal(t, tc.discounted, line.DiscountedPrice.String())
			assert.Equal(t, tc.subtotal, line.SubTotal.String())
			if !tc.promoted {
				assert.Nil(t, line.Promotion)
				return
			}
			require.NotNil(t, line.Promotion)
			assert.Equal(t, "promo_1", line.Promotion.PromotionID)
			assert.Equal(t, "12.5", line.Promotion.DiscountAmount.String())
		})
	}
}
