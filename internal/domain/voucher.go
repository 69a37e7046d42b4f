package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType selects how a voucher discount is computed.
type VoucherType string

const (
	VoucherTypePercentage  VoucherType = "PERCENTAGE"
	VoucherTypeFixedAmount VoucherType = "FIXED_AMOUNT"
)

// VoucherStatus is the redeemability state of a voucher.
type VoucherStatus string

const (
	VoucherStatusActive  VoucherStatus = "ACTIVE"
	VoucherStatusExpired VoucherStatus = "EXPIRED"
	VoucherStatusUsed    VoucherStatus = "USED"
)

// VoucherSource records why a voucher was issued.
type VoucherSource string

const (
	VoucherSourceReview    VoucherSource = "REVIEW"
	VoucherSourcePromotion VoucherSource = "PROMOTION"
	VoucherSourceSystem    VoucherSource = "SYSTEM"
)

// Voucher is a single-user discount code with a usage cap. UsedCount never exceeds Count.
type Voucher struct {
	ID            string
	Code          string
	Name          string
	Description   string
	Type          VoucherType
	Value         decimal.Decimal
	MaxDiscount   *decimal.Decimal
	MinOrderValue decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	Count         int
	UsedCount     int
	UserID        string
	Status        VoucherStatus
	Source        VoucherSource
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Redeemable reports whether the voucher can be applied at now.
func (v Voucher) Redeemable(now time.Time) bool {
	if v.Status != VoucherStatusActive || v.UsedCount >= v.Count {
		return false
	}
	if !v.StartDate.IsZero() && now.Before(v.StartDate) {
		return false
	}
	if !v.EndDate.IsZero() && now.After(v.EndDate) {
		return false
	}
	return true
}

// AppliedVoucher is the immutable voucher snapshot stored on an invoice.
type AppliedVoucher struct {
	VoucherID      string
	Code           string
	Type           VoucherType
	Value          decimal.Decimal
	DiscountAmount decimal.Decimal
}
