package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	voucherIDPrefix         = "vch_"
	reviewVoucherCodePrefix = "REV-"
	reviewVoucherValidity   = 30 * 24 * time.Hour
	voucherIssueAttempts    = 3
)

var (
	reviewVoucherValue       = decimal.NewFromInt(10)
	reviewVoucherMaxDiscount = decimal.NewFromInt(100000)
)

var (
	// ErrInvalidVoucher covers unknown, foreign, expired, and exhausted vouchers alike.
	ErrInvalidVoucher = errors.New("voucher: used or expired voucher code")
	// ErrVoucherInvalidInput signals the caller provided invalid data.
	ErrVoucherInvalidInput = errors.New("voucher: invalid input")
)

// VoucherLedgerDeps bundles collaborators required to construct the voucher ledger.
type VoucherLedgerDeps struct {
	Vouchers      repositories.VoucherRepository
	Clock         func() time.Time
	IDGenerator   func() string
	CodeGenerator func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type voucherLedger struct {
	vouchers repositories.VoucherRepository
	clock    func() time.Time
	newID    func() string
	newCode  func() string
	logger   func(context.Context, string, map[string]any)
}

// NewVoucherLedger wires dependencies into a concrete VoucherLedger implementation.
func NewVoucherLedger(deps VoucherLedgerDeps) (VoucherLedger, error) {
	if deps.Vouchers == nil {
		return nil, errors.New("voucher ledger: voucher repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	codeGen := deps.CodeGenerator
	if codeGen == nil {
		// last eight characters of a ULID come from its random component
		codeGen = func() string {
			id := ulid.Make().String()
			return reviewVoucherCodePrefix + id[len(id)-8:]
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &voucherLedger{
		vouchers: deps.Vouchers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		newCode: codeGen,
		logger:  logger,
	}, nil
}

func (l *voucherLedger) ApplyVoucher(ctx context.Context, code, userID string, amount decimal.Decimal) (VoucherApplication, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return VoucherApplication{FinalAmount: amount, Discount: decimal.Zero}, nil
	}

	voucher, err := l.vouchers.FindActiveByCode(ctx, code, strings.TrimSpace(userID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return VoucherApplication{}, ErrInvalidVoucher
		}
		return VoucherApplication{}, fmt.Errorf("voucher: lookup code: %w", err)
	}
	if !voucher.Redeemable(l.clock()) || amount.LessThan(voucher.MinOrderValue) {
		return VoucherApplication{}, ErrInvalidVoucher
	}

	discount := voucherDiscount(voucher, amount)
	final := amount.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return VoucherApplication{
		Applied:     true,
		Discount:    discount,
		FinalAmount: final,
		Voucher: &AppliedVoucher{
			VoucherID:      voucher.ID,
			Code:           voucher.Code,
			Type:           voucher.Type,
			Value:          voucher.Value,
			DiscountAmount: discount,
		},
	}, nil
}

// MarkVoucherAsUsed consumes one use. Callers run it inside the invoice creation transaction.
func (l *voucherLedger) MarkVoucherAsUsed(ctx context.Context, voucherID string) error {
	voucherID = strings.TrimSpace(voucherID)
	if voucherID == "" {
		return fmt.Errorf("%w: voucher id is required", ErrVoucherInvalidInput)
	}
	voucher, err := l.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ErrInvalidVoucher
		}
		return fmt.Errorf("voucher: load %s: %w", voucherID, err)
	}
	if voucher.Status != domain.VoucherStatusActive || voucher.UsedCount >= voucher.Count {
		return ErrInvalidVoucher
	}

	used := voucher.UsedCount + 1
	status := domain.VoucherStatusActive
	if used >= voucher.Count {
		status = domain.VoucherStatusUsed
	}
	if err := l.vouchers.UpdateUsage(ctx, voucherID, used, status, l.clock()); err != nil {
		return fmt.Errorf("voucher: mark %s used: %w", voucherID, err)
	}
	return nil
}

func (l *voucherLedger) IssueReviewVoucher(ctx context.Context, userID, reviewID string) (Voucher, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Voucher{}, fmt.Errorf("%w: user id is required", ErrVoucherInvalidInput)
	}

	now := l.clock()
	maxDiscount := reviewVoucherMaxDiscount
	voucher := Voucher{
		Name:          "Review Reward",
		Description:   "Thank you for your product review!",
		Type:          domain.VoucherTypePercentage,
		Value:         reviewVoucherValue,
		MaxDiscount:   &maxDiscount,
		MinOrderValue: decimal.Zero,
		StartDate:     now,
		EndDate:       now.Add(reviewVoucherValidity),
		Count:         1,
		UserID:        userID,
		Status:        domain.VoucherStatusActive,
		Source:        domain.VoucherSourceReview,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var err error
	for attempt := 0; attempt < voucherIssueAttempts; attempt++ {
		voucher.ID = voucherIDPrefix + l.newID()
		voucher.Code = l.newCode()
		err = l.vouchers.Insert(ctx, voucher)
		if err == nil {
			return voucher, nil
		}
		if !repositories.IsConflict(err) {
			break
		}
		l.logger(ctx, "voucher.issue.code_collision", map[string]any{
			"review":  reviewID,
			"attempt": attempt + 1,
		})
	}
	return Voucher{}, fmt.Errorf("voucher: issue review reward: %w", err)
}

func (l *voucherLedger) ListUserVouchers(ctx context.Context, userID string) ([]Voucher, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrVoucherInvalidInput)
	}
	vouchers, err := l.vouchers.ListByUser(ctx, userID, domain.VoucherStatusActive)
	if err != nil {
		return nil, fmt.Errorf("voucher: list: %w", err)
	}
	return vouchers, nil
}

func voucherDiscount(voucher Voucher, amount decimal.Decimal) decimal.Decimal {
	switch voucher.Type {
	case domain.VoucherTypePercentage:
		discount := round2(amount.Mul(voucher.Value).Div(hundred))
		if voucher.MaxDiscount != nil && discount.GreaterThan(*voucher.MaxDiscount) {
			discount = *voucher.MaxDiscount
		}
		return discount
	default:
		return voucher.Value
	}
}
