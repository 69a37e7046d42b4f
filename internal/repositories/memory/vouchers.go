package memory

import (
	"context"
	"slices"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// VoucherRepository is the in-memory repositories.VoucherRepository.
type VoucherRepository struct {
	store *Store
}

var _ repositories.VoucherRepository = (*VoucherRepository)(nil)

func (r *VoucherRepository) Insert(ctx context.Context, voucher domain.Voucher) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.vouchers[voucher.ID]; exists {
		return conflict("vouchers.insert", "voucher %s already exists", voucher.ID)
	}
	for _, existing := range r.store.vouchers {
		if existing.Code == voucher.Code {
			return conflict("vouchers.insert", "voucher code %s already exists", voucher.Code)
		}
	}
	r.store.vouchers[voucher.ID] = voucher
	r.store.onRollback(ctx, func() { delete(r.store.vouchers, voucher.ID) })
	return nil
}

func (r *VoucherRepository) FindByID(_ context.Context, voucherID string) (domain.Voucher, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	voucher, ok := r.store.vouchers[voucherID]
	if !ok {
		return domain.Voucher{}, notFound("vouchers.get", "voucher %s not found", voucherID)
	}
	return voucher, nil
}

func (r *VoucherRepository) FindActiveByCode(_ context.Context, code, userID string) (domain.Voucher, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, voucher := range r.store.vouchers {
		if voucher.Code == code && voucher.UserID == userID && voucher.Status == domain.VoucherStatusActive {
			return voucher, nil
		}
	}
	return domain.Voucher{}, notFound("vouchers.find_by_code", "no active voucher %s", code)
}

func (r *VoucherRepository) UpdateUsage(ctx context.Context, voucherID string, usedCount int, status domain.VoucherStatus, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	voucher, ok := r.store.vouchers[voucherID]
	if !ok {
		return notFound("vouchers.update_usage", "voucher %s not found", voucherID)
	}
	previous := voucher
	r.store.onRollback(ctx, func() {
		if current, ok := r.store.vouchers[voucherID]; ok && current.UsedCount == usedCount && current.UpdatedAt.Equal(at) {
			r.store.vouchers[voucherID] = previous
		}
	})
	voucher.UsedCount = usedCount
	voucher.Status = status
	voucher.UpdatedAt = at
	r.store.vouchers[voucherID] = voucher
	return nil
}

func (r *VoucherRepository) ListByUser(_ context.Context, userID string, status domain.VoucherStatus) ([]domain.Voucher, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []domain.Voucher
	for _, voucher := range r.store.vouchers {
		if voucher.UserID == userID && (status == "" || voucher.Status == status) {
			out = append(out, voucher)
		}
	}
	slices.SortFunc(out, func(a, b domain.Voucher) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}
