package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/pagination"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// InvoiceRepository persists invoices in Firestore.
type InvoiceRepository struct {
	base *pfirestore.BaseRepository[invoiceDocument]
	uow  *pfirestore.UnitOfWork
}

var _ repositories.InvoiceRepository = (*InvoiceRepository)(nil)

type invoiceDocument struct {
	UserID           string                  `firestore:"invoice_user"`
	ContactName      string                  `firestore:"contact_name"`
	ContactPhone     string                  `firestore:"contact_phone_number"`
	Products         []invoiceLineDocument   `firestore:"invoice_products"`
	Note             string                  `firestore:"invoice_note"`
	ShippingLine     string                  `firestore:"shipping_address_line"`
	ShippingDistrict string                  `firestore:"shipping_address_district"`
	ShippingProvince string                  `firestore:"shipping_address_province"`
	ShippingCountry  string                  `firestore:"shipping_address_country"`
	PaymentMethod    string                  `firestore:"payment_method"`
	Status           string                  `firestore:"invoice_status"`
	Total            float64                 `firestore:"invoice_total"`
	AppliedVoucher   *appliedVoucherDocument `firestore:"applied_voucher,omitempty"`
	CreatedAt        time.Time               `firestore:"createdAt"`
	UpdatedAt        time.Time               `firestore:"updatedAt"`
}

type invoiceLineDocument struct {
	ProductID string                 `firestore:"product_id"`
	Name      string                 `firestore:"product_name"`
	Size      string                 `firestore:"product_size"`
	Color     string                 `firestore:"product_color"`
	Image     string                 `firestore:"product_image"`
	Price     float64                `firestore:"product_price"`
	Quantity  int                    `firestore:"quantity"`
	SubTotal  float64                `firestore:"product_sub_total_price"`
	Promotion *linePromotionDocument `firestore:"promotion,omitempty"`
}

type linePromotionDocument struct {
	PromotionID        string  `firestore:"promotion_id"`
	Name               string  `firestore:"promotion_name"`
	DiscountPercentage float64 `firestore:"discount_percentage"`
	DiscountAmount     float64 `firestore:"discount_amount"`
}

type appliedVoucherDocument struct {
	VoucherID      string  `firestore:"voucher_id"`
	Code           string  `firestore:"voucher_code"`
	Type           string  `firestore:"voucher_type"`
	Value          float64 `firestore:"voucher_value"`
	DiscountAmount float64 `firestore:"discount_amount"`
}

func (r *InvoiceRepository) Insert(ctx context.Context, invoice domain.Invoice) error {
	return r.base.Create(ctx, invoice.ID, newInvoiceDocument(invoice))
}

func (r *InvoiceRepository) FindByID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	doc, err := r.base.Get(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, invoiceID string, from, to domain.InvoiceStatus, at time.Time) (domain.Invoice, error) {
	var updated domain.Invoice
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if domain.InvoiceStatus(doc.Data.Status) != from {
			return statusConflict(invoiceID, domain.InvoiceStatus(doc.Data.Status), from)
		}
		if err := r.base.Update(ctx, invoiceID, []firestore.Update{
			{Path: "invoice_status", Value: string(to)},
			{Path: "updatedAt", Value: at.UTC()},
		}, firestore.LastUpdateTime(doc.UpdateTime)); err != nil {
			return err
		}
		updated = doc.Data.toDomain(doc.ID)
		updated.Status = to
		updated.UpdatedAt = at.UTC()
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return updated, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter repositories.InvoiceListFilter) (domain.Page[domain.Invoice], error) {
	where := func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("invoice_user", "==", filter.UserID)
		}
		if filter.Status != nil {
			q = q.Where("invoice_status", "==", string(*filter.Status))
		}
		return q
	}

	total, err := r.base.Count(ctx, where)
	if err != nil {
		return domain.Page[domain.Invoice]{}, err
	}

	field := string(filter.SortBy)
	if field == "" {
		field = string(repositories.InvoiceSortCreatedAt)
	}
	direction := firestore.Asc
	if filter.Desc {
		direction = firestore.Desc
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return where(q).OrderBy(field, direction).Offset(offsetOf(filter.Page, filter.Limit)).Limit(filter.Limit)
	})
	if err != nil {
		return domain.Page[domain.Invoice]{}, err
	}

	items := make([]domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return newPage(items, total, filter.Page, filter.Limit), nil
}

func (r *InvoiceRepository) ListByStatus(ctx context.Context, status domain.InvoiceStatus) ([]domain.Invoice, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("invoice_status", "==", string(status)).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return items, nil
}

func (r *InvoiceRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("invoice_user", "==", userID)
		}
		return q.Where("createdAt", ">=", since.UTC())
	})
}

func (r *InvoiceRepository) StatusCountsSince(ctx context.Context, since time.Time) (map[domain.InvoiceStatus]int, error) {
	counts := make(map[domain.InvoiceStatus]int)
	for _, status := range domain.InvoiceStatuses {
		n, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("invoice_status", "==", string(status)).Where("createdAt", ">=", since.UTC())
		})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[status] = n
		}
	}
	return counts, nil
}

func newInvoiceDocument(invoice domain.Invoice) invoiceDocument {
	doc := invoiceDocument{
		UserID:           invoice.UserID,
		ContactName:      invoice.ContactName,
		ContactPhone:     invoice.ContactPhone,
		Note:             invoice.Note,
		ShippingLine:     invoice.Shipping.Line,
		ShippingDistrict: invoice.Shipping.District,
		ShippingProvince: invoice.Shipping.Province,
		ShippingCountry:  invoice.Shipping.Country,
		PaymentMethod:    string(invoice.PaymentMethod),
		Status:           string(invoice.Status),
		Total:            money(invoice.Total),
		CreatedAt:        utc(invoice.CreatedAt),
		UpdatedAt:        utc(invoice.UpdatedAt),
	}
	for _, line := range invoice.Products {
		lineDoc := invoiceLineDocument{
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Color:     line.Color,
			Image:     line.Image,
			Price:     money(line.Price),
			Quantity:  line.Quantity,
			SubTotal:  money(line.SubTotal),
		}
		if p := line.Promotion; p != nil {
			lineDoc.Promotion = &linePromotionDocument{
				PromotionID:        p.PromotionID,
				Name:               p.Name,
				DiscountPercentage: p.DiscountPercentage.InexactFloat64(),
				DiscountAmount:     money(p.DiscountAmount),
			}
		}
		doc.Products = append(doc.Products, lineDoc)
	}
	if v := invoice.AppliedVoucher; v != nil {
		doc.AppliedVoucher = &appliedVoucherDocument{
			VoucherID:      v.VoucherID,
			Code:           v.Code,
			Type:           string(v.Type),
			Value:          v.Value.InexactFloat64(),
			DiscountAmount: money(v.DiscountAmount),
		}
	}
	return doc
}

func (d invoiceDocument) toDomain(id string) domain.Invoice {
	invoice := domain.Invoice{
		ID:           id,
		UserID:       d.UserID,
		ContactName:  d.ContactName,
		ContactPhone: d.ContactPhone,
		Shipping: domain.Address{
			Line:     d.ShippingLine,
			District: d.ShippingDistrict,
			Province: d.ShippingProvince,
			Country:  d.ShippingCountry,
		},
		Note:          d.Note,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		Status:        domain.InvoiceStatus(d.Status),
		Total:         fromMoney(d.Total),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, line := range d.Products {
		item := domain.InvoiceLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			Price:     fromMoney(line.Price),
			Size:      line.Size,
			Color:     line.Color,
			Quantity:  line.Quantity,
			SubTotal:  fromMoney(line.SubTotal),
		}
		if p := line.Promotion; p != nil {
			item.Promotion = &domain.LinePromotion{
				PromotionID:        p.PromotionID,
				Name:               p.Name,
				DiscountPercentage: fromMoney(p.DiscountPercentage),
				DiscountAmount:     fromMoney(p.DiscountAmount),
			}
		}
		invoice.Products = append(invoice.Products, item)
	}
	if v := d.AppliedVoucher; v != nil {
		invoice.AppliedVoucher = &domain.AppliedVoucher{
			VoucherID:      v.VoucherID,
			Code:           v.Code,
			Type:           domain.VoucherType(v.Type),
			Value:          fromMoney(v.Value),
			DiscountAmount: fromMoney(v.DiscountAmount),
		}
	}
	return invoice
}

// conflictError reports a failed status precondition.
type conflictError struct {
	msg string
}

var _ repositories.RepositoryError = (*conflictError)(nil)

func (e *conflictError) Error() string       { return e.msg }
func (e *conflictError) IsNotFound() bool    { return false }
func (e *conflictError) IsConflict() bool    { return true }
func (e *conflictError) IsUnavailable() bool { return false }

func statusConflict(invoiceID string, current, expected domain.InvoiceStatus) error {
	return &conflictError{msg: fmt.Sprintf("invoices.update_status: invoice %s is %s, expected %s", invoiceID, current, expected)}
}

func offsetOf(page, limit int) int {
	return pagination.Params{Page: page, Limit: limit}.Offset()
}

func newPage[T any](items []T, total, page, limit int) domain.Page[T] {
	return domain.Page[T]{
		Items:        items,
		TotalRecords: total,
		TotalPages:   pagination.TotalPages(total, limit),
		PageSize:     limit,
		CurrentPage:  page,
	}
}
