package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// VoucherRepository persists vouchers in Firestore.
type VoucherRepository struct {
	base *pfirestore.BaseRepository[voucherDocument]
}

var _ repositories.VoucherRepository = (*VoucherRepository)(nil)

type voucherDocument struct {
	Code          string    `firestore:"voucher_code"`
	Name          string    `firestore:"voucher_name"`
	Description   string    `firestore:"voucher_description"`
	Type          string    `firestore:"voucher_type"`
	Value         float64   `firestore:"voucher_value"`
	MaxDiscount   *float64  `firestore:"voucher_max_discount,omitempty"`
	MinOrderValue float64   `firestore:"voucher_min_order_value"`
	StartDate     time.Time `firestore:"voucher_start_date"`
	EndDate       time.Time `firestore:"voucher_end_date"`
	Count         int       `firestore:"voucher_count"`
	UsedCount     int       `firestore:"voucher_used_count"`
	UserID        string    `firestore:"voucher_user"`
	Status        string    `firestore:"voucher_status"`
	Source        string    `firestore:"voucher_source"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func (r *VoucherRepository) Insert(ctx context.Context, voucher domain.Voucher) error {
	doc := voucherDocument{
		Code:          voucher.Code,
		Name:          voucher.Name,
		Description:   voucher.Description,
		Type:          string(voucher.Type),
		Value:         voucher.Value.InexactFloat64(),
		MinOrderValue: money(voucher.MinOrderValue),
		StartDate:     utc(voucher.StartDate),
		EndDate:       utc(voucher.EndDate),
		Count:         voucher.Count,
		UsedCount:     voucher.UsedCount,
		UserID:        voucher.UserID,
		Status:        string(voucher.Status),
		Source:        string(voucher.Source),
		CreatedAt:     utc(voucher.CreatedAt),
		UpdatedAt:     utc(voucher.UpdatedAt),
	}
	if voucher.MaxDiscount != nil {
		maxDiscount := money(*voucher.MaxDiscount)
		doc.MaxDiscount = &maxDiscount
	}
	return r.base.Create(ctx, voucher.ID, doc)
}

func (r *VoucherRepository) FindByID(ctx context.Context, voucherID string) (domain.Voucher, error) {
	doc, err := r.base.Get(ctx, voucherID)
	if err != nil {
		return domain.Voucher{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *VoucherRepository) FindActiveByCode(ctx context.Context, code, userID string) (domain.Voucher, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("voucher_code", "==", code).
			Where("voucher_user", "==", userID).
			Where("voucher_status", "==", string(domain.VoucherStatusActive)).
			Limit(1)
	})
	if err != nil {
		return domain.Voucher{}, err
	}
	if len(docs) == 0 {
		return domain.Voucher{}, &notFoundError{msg: fmt.Sprintf("vouchers.find_by_code: no active voucher %s", code)}
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *VoucherRepository) UpdateUsage(ctx context.Context, voucherID string, usedCount int, status domain.VoucherStatus, at time.Time) error {
	return r.base.Update(ctx, voucherID, []firestore.Update{
		{Path: "voucher_used_count", Value: usedCount},
		{Path: "voucher_status", Value: string(status)},
		{Path: "updatedAt", Value: at.UTC()},
	})
}

func (r *VoucherRepository) ListByUser(ctx context.Context, userID string, status domain.VoucherStatus) ([]domain.Voucher, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("voucher_user", "==", userID)
		if status != "" {
			q = q.Where("voucher_status", "==", string(status))
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	vouchers := make([]domain.Voucher, 0, len(docs))
	for _, doc := range docs {
		vouchers = append(vouchers, doc.Data.toDomain(doc.ID))
	}
	return vouchers, nil
}

func (d voucherDocument) toDomain(id string) domain.Voucher {
	voucher := domain.Voucher{
		ID:            id,
		Code:          d.Code,
		Name:          d.Name,
		Description:   d.Description,
		Type:          domain.VoucherType(d.Type),
		Value:         fromMoney(d.Value),
		MinOrderValue: fromMoney(d.MinOrderValue),
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		Count:         d.Count,
		UsedCount:     d.UsedCount,
		UserID:        d.UserID,
		Status:        domain.VoucherStatus(d.Status),
		Source:        domain.VoucherSource(d.Source),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.MaxDiscount != nil {
		maxDiscount := fromMoney(*d.MaxDiscount)
		voucher.MaxDiscount = &maxDiscount
	}
	return voucher
}

// notFoundError reports a query that matched no document.
type notFoundError struct {
	msg string
}

var _ repositories.RepositoryError = (*notFoundError)(nil)

func (e *notFoundError) Error() string       { return e.msg }
func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }
