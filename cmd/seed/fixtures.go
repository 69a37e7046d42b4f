package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

type fixtureFile struct {
	Products []productFixture `yaml:"products"`
	Vouchers []voucherFixture `yaml:"vouchers"`
}

type productFixture struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Price     string            `yaml:"price"`
	Images    []string          `yaml:"images"`
	Category  string            `yaml:"category"`
	Promotion *promotionFixture `yaml:"promotion"`
	SKUs      []skuFixture      `yaml:"skus"`
}

type promotionFixture struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Percentage string `yaml:"percentage"`
	StartDate  string `yaml:"start_date"`
	EndDate    string `yaml:"end_date"`
}

type skuFixture struct {
	ID       string `yaml:"id"`
	Color    string `yaml:"color"`
	Size     string `yaml:"size"`
	Quantity int    `yaml:"quantity"`
}

type voucherFixture struct {
	ID            string `yaml:"id"`
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Type          string `yaml:"type"`
	Value         string `yaml:"value"`
	MaxDiscount   string `yaml:"max_discount"`
	MinOrderValue string `yaml:"min_order_value"`
	StartDate     string `yaml:"start_date"`
	EndDate       string `yaml:"end_date"`
	Count         int    `yaml:"count"`
	UserID        string `yaml:"user_id"`
	Source        string `yaml:"source"`
}

var errNoFixtures = errors.New("fixture file has no products or vouchers")

// fixtures is the decoded, validated content of a fixture file.
type fixtures struct {
	Products []domain.Product
	SKUs     []domain.InventorySKU
	Vouchers []domain.Voucher
}

func decodeFixtures(r io.Reader, now time.Time) (fixtures, error) {
	var file fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}

	if len(file.Products) == 0 && len(file.Vouchers) == 0 {
		return fixtures{}, errNoFixtures
	}

	var out fixtures
	for _, p := range file.Products {
		product, skus, err := p.toDomain(now)
		if err != nil {
			return fixtures{}, err
		}
		out.Products = append(out.Products, product)
		out.SKUs = append(out.SKUs, skus...)
	}
	for _, v := range file.Vouchers {
		voucher, err := v.toDomain(now)
		if err != nil {
			return fixtures{}, err
		}
		out.Vouchers = append(out.Vouchers, voucher)
	}
	return out, nil
}

func (p productFixture) toDomain(now time.Time) (domain.Product, []domain.InventorySKU, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return domain.Product{}, nil, fmt.Errorf("product %q: id is required", p.Name)
	}
	price, err := parseAmount(p.Price)
	if err != nil {
		return domain.Product{}, nil, fmt.Errorf("product %s: price: %w", id, err)
	}
	product := domain.Product{
		ID:         id,
		Name:       strings.TrimSpace(p.Name),
		Price:      price,
		Images:     p.Images,
		CategoryID: strings.TrimSpace(p.Category),
	}
	if promo := p.Promotion; promo != nil {
		percentage, err := parseAmount(promo.Percentage)
		if err != nil {
			return domain.Product{}, nil, fmt.Errorf("product %s: promotion percentage: %w", id, err)
		}
		if percentage.GreaterThan(decimal.NewFromInt(100)) {
			return domain.Product{}, nil, fmt.Errorf("product %s: promotion percentage above 100", id)
		}
		start, end, err := parseWindow(promo.StartDate, promo.EndDate)
		if err != nil {
			return domain.Product{}, nil, fmt.Errorf("product %s: promotion: %w", id, err)
		}
		product.Promotion = &domain.ProductPromotion{
			PromotionID: strings.TrimSpace(promo.ID),
			Name:        strings.TrimSpace(promo.Name),
			Percentage:  percentage,
			StartDate:   start,
			EndDate:     end,
		}
	}

	skus := make([]domain.InventorySKU, 0, len(p.SKUs))
	for i, s := range p.SKUs {
		skuID := strings.TrimSpace(s.ID)
		if skuID == "" {
			skuID = fmt.Sprintf("%s_%s_%s", id, strings.ToLower(s.Color), strings.ToUpper(s.Size))
		}
		if s.Quantity < 0 {
			return domain.Product{}, nil, fmt.Errorf("product %s: sku %d: negative quantity", id, i)
		}
		skus = append(skus, domain.InventorySKU{
			ID:        skuID,
			ProductID: id,
			Color:     s.Color,
			Size:      s.Size,
			Quantity:  s.Quantity,
			UpdatedAt: now,
		})
	}
	return product, skus, nil
}

func (v voucherFixture) toDomain(now time.Time) (domain.Voucher, error) {
	id := strings.TrimSpace(v.ID)
	if id == "" {
		return domain.Voucher{}, fmt.Errorf("voucher %q: id is required", v.Code)
	}
	voucherType := domain.VoucherType(strings.ToUpper(strings.TrimSpace(v.Type)))
	switch voucherType {
	case domain.VoucherTypePercentage, domain.VoucherTypeFixedAmount:
	default:
		return domain.Voucher{}, fmt.Errorf("voucher %s: unknown type %q", id, v.Type)
	}
	value, err := parseAmount(v.Value)
	if err != nil {
		return domain.Voucher{}, fmt.Errorf("voucher %s: value: %w", id, err)
	}
	minOrder := decimal.Zero
	if strings.TrimSpace(v.MinOrderValue) != "" {
		if minOrder, err = parseAmount(v.MinOrderValue); err != nil {
			return domain.Voucher{}, fmt.Errorf("voucher %s: min order value: %w", id, err)
		}
	}
	start, end, err := parseWindow(v.StartDate, v.EndDate)
	if err != nil {
		return domain.Voucher{}, fmt.Errorf("voucher %s: %w", id, err)
	}
	source := domain.VoucherSource(strings.ToUpper(strings.TrimSpace(v.Source)))
	if source == "" {
		source = domain.VoucherSourcePromotion
	}
	count := v.Count
	if count <= 0 {
		count = 1
	}

	voucher := domain.Voucher{
		ID:            id,
		Code:          strings.TrimSpace(v.Code),
		Name:          strings.TrimSpace(v.Name),
		Description:   strings.TrimSpace(v.Description),
		Type:          voucherType,
		Value:         value,
		MinOrderValue: minOrder,
		StartDate:     start,
		EndDate:       end,
		Count:         count,
		UserID:        strings.TrimSpace(v.UserID),
		Status:        domain.VoucherStatusActive,
		Source:        source,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if strings.TrimSpace(v.MaxDiscount) != "" {
		maxDiscount, err := parseAmount(v.MaxDiscount)
		if err != nil {
			return domain.Voucher{}, fmt.Errorf("voucher %s: max discount: %w", id, err)
		}
		voucher.MaxDiscount = &maxDiscount
	}
	return voucher, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %s", raw)
	}
	return value, nil
}

func parseWindow(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(rawStart))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(rawEnd))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s before start date %s", rawEnd, rawStart)
	}
	return start.UTC(), end.UTC(), nil
}
