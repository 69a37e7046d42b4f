package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// ProductRepository reads catalog products from Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

type productDocument struct {
	Name       string                    `firestore:"product_name"`
	Price      float64                   `firestore:"product_price"`
	Images     []string                  `firestore:"product_imgs"`
	CategoryID string                    `firestore:"product_category"`
	Promotion  *productPromotionDocument `firestore:"product_promotion,omitempty"`
}

type productPromotionDocument struct {
	PromotionID string    `firestore:"promotion_id"`
	Name        string    `firestore:"promotion_name"`
	Percentage  float64   `firestore:"current_discount"`
	StartDate   time.Time `firestore:"start_date"`
	EndDate     time.Time `firestore:"end_date"`
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:         doc.ID,
		Name:       doc.Data.Name,
		Price:      fromMoney(doc.Data.Price),
		Images:     doc.Data.Images,
		CategoryID: doc.Data.CategoryID,
	}
	if p := doc.Data.Promotion; p != nil {
		product.Promotion = &domain.ProductPromotion{
			PromotionID: p.PromotionID,
			Name:        p.Name,
			Percentage:  fromMoney(p.Percentage),
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
		}
	}
	return product, nil
}

// Put writes product, replacing any stored copy. It backs fixture loading.
func (r *ProductRepository) Put(ctx context.Context, product domain.Product) error {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product id is required")
	}
	doc := productDocument{
		Name:       product.Name,
		Price:      money(product.Price),
		Images:     product.Images,
		CategoryID: product.CategoryID,
	}
	if p := product.Promotion; p != nil {
		doc.Promotion = &productPromotionDocument{
			PromotionID: p.PromotionID,
			Name:        p.Name,
			Percentage:  money(p.Percentage),
			StartDate:   utc(p.StartDate),
			EndDate:     utc(p.EndDate),
		}
	}
	return r.base.Set(ctx, id, doc)
}

// InventoryRepository reads and adjusts SKU stock in Firestore. Each document is one color+size
// variant of a product.
type InventoryRepository struct {
	base *pfirestore.BaseRepository[skuDocument]
	uow  *pfirestore.UnitOfWork
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

type skuDocument struct {
	ProductID string    `firestore:"inventory_product"`
	Color     string    `firestore:"sku_color"`
	Size      string    `firestore:"sku_size"`
	Quantity  int       `firestore:"sku_quantity"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d skuDocument) toDomain(id string) domain.InventorySKU {
	return domain.InventorySKU{
		ID:        id,
		ProductID: d.ProductID,
		Color:     d.Color,
		Size:      d.Size,
		Quantity:  d.Quantity,
		UpdatedAt: d.UpdatedAt,
	}
}

func (r *InventoryRepository) FindSKU(ctx context.Context, productID, color, size string) (domain.InventorySKU, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("inventory_product", "==", productID).
			Where("sku_color", "==", strings.ToLower(strings.TrimSpace(color))).
			Where("sku_size", "==", strings.ToUpper(strings.TrimSpace(size))).
			Limit(1)
	})
	if err != nil {
		return domain.InventorySKU{}, wrapInventoryError("inventory.find_sku", err)
	}
	if len(docs) == 0 {
		err := repositories.NewInventoryError(repositories.InventoryErrorSKUNotFound,
			fmt.Sprintf("no sku for product %s color %s size %s", productID, color, size), nil)
		err.Op = "inventory.find_sku"
		return domain.InventorySKU{}, err
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *InventoryRepository) AdjustQuantity(ctx context.Context, skuID string, delta int, at time.Time) (domain.InventorySKU, error) {
	var adjusted domain.InventorySKU
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, skuID)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return repositories.NewInventoryError(repositories.InventoryErrorSKUNotFound, fmt.Sprintf("sku %s not found", skuID), err)
			}
			return err
		}
		if doc.Data.Quantity+delta < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock,
				fmt.Sprintf("sku %s has %d, cannot remove %d", skuID, doc.Data.Quantity, -delta), nil)
		}
		next := doc.Data
		next.Quantity += delta
		next.UpdatedAt = at.UTC()
		if err := r.base.Update(ctx, skuID, []firestore.Update{
			{Path: "sku_quantity", Value: next.Quantity},
			{Path: "updatedAt", Value: next.UpdatedAt},
		}); err != nil {
			return err
		}
		adjusted = next.toDomain(skuID)
		return nil
	})
	if err != nil {
		return domain.InventorySKU{}, wrapInventoryError("inventory.adjust", err)
	}
	return adjusted, nil
}

// Put writes sku with the same color/size normalisation FindSKU queries by.
func (r *InventoryRepository) Put(ctx context.Context, sku domain.InventorySKU) error {
	id := strings.TrimSpace(sku.ID)
	if id == "" {
		return errors.New("sku id is required")
	}
	return r.base.Set(ctx, id, skuDocument{
		ProductID: sku.ProductID,
		Color:     strings.ToLower(strings.TrimSpace(sku.Color)),
		Size:      strings.ToUpper(strings.TrimSpace(sku.Size)),
		Quantity:  sku.Quantity,
		UpdatedAt: utc(sku.UpdatedAt),
	})
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return err
}
