package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	reviewIDPrefix      = "rev_"
	maxReviewContentLen = 2000
	minReviewRating     = 1
	maxReviewRating     = 5
)

var (
	// ErrReviewInvalidInput indicates validation failures for review operations.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotAllowed indicates the reviewer never received the product on the invoice.
	ErrReviewNotAllowed = errors.New("review: you can only review products you have purchased")
	// ErrReviewAlreadyExists signals a second review for the same invoice line.
	ErrReviewAlreadyExists = errors.New("review: already reviewed")
)

// ReviewServiceDeps bundles collaborators required to construct a ReviewService.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Invoices    repositories.InvoiceRepository
	Vouchers    VoucherLedger
	Notifier    ReviewNotifier
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews    repositories.ReviewRepository
	invoices   repositories.InvoiceRepository
	vouchers   VoucherLedger
	notifier   ReviewNotifier
	unitOfWork repositories.UnitOfWork
	sanitizer  *bluemonday.Policy
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Invoices == nil {
		return nil, errors.New("review service: invoice repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:    deps.Reviews,
		invoices:   deps.Invoices,
		vouchers:   deps.Vouchers,
		notifier:   deps.Notifier,
		unitOfWork: unit,
		sanitizer:  bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (CreateReviewResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	invoiceID := strings.TrimSpace(cmd.InvoiceID)
	switch {
	case userID == "":
		return CreateReviewResult{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	case productID == "":
		return CreateReviewResult{}, fmt.Errorf("%w: product id is required", ErrReviewInvalidInput)
	case invoiceID == "":
		return CreateReviewResult{}, fmt.Errorf("%w: invoice id is required", ErrReviewInvalidInput)
	case cmd.Rating < minReviewRating || cmd.Rating > maxReviewRating:
		return CreateReviewResult{}, fmt.Errorf("%w: rating must be between %d and %d", ErrReviewInvalidInput, minReviewRating, maxReviewRating)
	}

	content := plainText(s.sanitizer, cmd.Content)
	if utf8.RuneCountInString(content) > maxReviewContentLen {
		return CreateReviewResult{}, fmt.Errorf("%w: content exceeds %d characters", ErrReviewInvalidInput, maxReviewContentLen)
	}

	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return CreateReviewResult{}, ErrInvoiceNotFound
		}
		return CreateReviewResult{}, fmt.Errorf("review: load invoice: %w", err)
	}
	if invoice.UserID != userID {
		return CreateReviewResult{}, ErrInvoiceNotFound
	}
	if invoice.Status != domain.InvoiceStatusDelivered || !invoiceHasProduct(invoice, productID) {
		return CreateReviewResult{}, ErrReviewNotAllowed
	}

	review := Review{
		ID:        reviewIDPrefix + s.newID(),
		UserID:    userID,
		ProductID: productID,
		InvoiceID: invoiceID,
		Rating:    cmd.Rating,
		Content:   content,
		CreatedAt: s.clock(),
	}

	var issued *Voucher
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.reviews.ExistsForInvoiceProduct(txCtx, invoiceID, productID)
		if err != nil {
			return err
		}
		if exists {
			return ErrReviewAlreadyExists
		}
		if err := s.reviews.Insert(txCtx, review); err != nil {
			if repositories.IsConflict(err) {
				return ErrReviewAlreadyExists
			}
			return err
		}
		if s.vouchers == nil {
			return nil
		}
		voucher, err := s.vouchers.IssueReviewVoucher(txCtx, userID, review.ID)
		if err != nil {
			return err
		}
		issued = &voucher
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReviewAlreadyExists) {
			return CreateReviewResult{}, err
		}
		return CreateReviewResult{}, fmt.Errorf("review: create: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyNewReview(ctx, review)
		if issued != nil {
			s.notifier.NotifyVoucherIssued(ctx, *issued)
		}
	}
	s.logger(ctx, "review.created", map[string]any{
		"reviewId":  review.ID,
		"invoiceId": invoiceID,
		"productId": productID,
		"rating":    review.Rating,
	})

	return CreateReviewResult{Review: review, Voucher: issued}, nil
}

func invoiceHasProduct(invoice Invoice, productID string) bool {
	for _, line := range invoice.Products {
		if line.ProductID == productID {
			return true
		}
	}
	return false
}
