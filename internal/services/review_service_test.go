package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

type failingIssueVouchers struct {
	repositories.VoucherRepository
}

func (failingIssueVouchers) Insert(context.Context, domain.Voucher) error {
	return errors.New("firestore: permission denied")
}

func putDeliveredInvoice(f *fixture, id, userID string) {
	f.registry.PutInvoice(domain.Invoice{
		ID:     id,
		UserID: userID,
		Status: domain.InvoiceStatusDelivered,
		Products: []domain.InvoiceLine{
			{ProductID: "prod_1", Color: "black", Size: "M", Quantity: 1, Price: decimal.NewFromInt(100), SubTotal: decimal.NewFromInt(100)},
		},
		Total:     decimal.NewFromInt(100),
		CreatedAt: fixtureStart,
		UpdatedAt: fixtureStart,
	})
}

func reviewCommand(invoiceID string) CreateReviewCommand {
	return CreateReviewCommand{
		UserID:    "user_1",
		ProductID: "prod_1",
		InvoiceID: invoiceID,
		Rating:    5,
		Content:   "Fits <em>perfectly</em>",
	}
}

func TestCreateReviewIssuesVoucherAndNotifies(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	putDeliveredInvoice(f, "inv_000900", "user_1")

	result, err := f.reviews.Create(context.Background(), reviewCommand("inv_000900"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Review.ID, "rev_"))
	assert.Equal(t, "Fits perfectly", result.Review.Content)
	assert.Equal(t, fixtureStart, result.Review.CreatedAt)
	require.NotNil(t, result.Voucher)
	assert.Equal(t, "user_1", result.Voucher.UserID)
	assert.Equal(t, domain.VoucherSourceReview, result.Voucher.Source)

	vouchers, err := f.vouchers.ListUserVouchers(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	assert.Equal(t, result.Voucher.Code, vouchers[0].Code)

	types := map[domain.NotificationType]int{}
	for _, n := range f.notificationsFor("user_1") {
		types[n.Type]++
	}
	assert.Equal(t, map[domain.NotificationType]int{domain.NotificationTypeReview: 1, domain.NotificationTypeVoucher: 1}, types)
	assert.Len(t, f.notificationsFor(""), 1)
}

func TestCreateReviewRejectsSecondReview(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	putDeliveredInvoice(f, "inv_1", "user_1")
	ctx := context.Background()

	_, err := f.reviews.Create(ctx, reviewCommand("inv_1"))
	require.NoError(t, err)

	_, err = f.reviews.Create(ctx, reviewCommand("inv_1"))
	assert.ErrorIs(t, err, ErrReviewAlreadyExists)

	vouchers, err := f.vouchers.ListUserVouchers(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}

func TestCreateReviewEligibility(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	putDeliveredInvoice(f, "inv_delivered", "user_1")
	putDeliveredInvoice(f, "inv_foreign", "user_2")
	f.registry.PutInvoice(domain.Invoice{
		ID:       "inv_pending",
		UserID:   "user_1",
		Status:   domain.InvoiceStatusPending,
		Products: []domain.InvoiceLine{{ProductID: "prod_1", Quantity: 1}},
	})

	cases := []struct {
		name string
		cmd  func(CreateReviewCommand) CreateReviewCommand
		err  error
	}{
		{name: "missing user", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.UserID = " "; return c }, err: ErrReviewInvalidInput},
		{name: "missing product", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.ProductID = ""; return c }, err: ErrReviewInvalidInput},
		{name: "missing invoice", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.InvoiceID = ""; return c }, err: ErrReviewInvalidInput},
		{name: "rating too low", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.Rating = 0; return c }, err: ErrReviewInvalidInput},
		{name: "rating too high", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.Rating = 6; return c }, err: ErrReviewInvalidInput},
		{name: "content too long", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.Content = strings.Repeat("a", 2001); return c }, err: ErrReviewInvalidInput},
		{name: "unknown invoice", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.InvoiceID = "inv_missing"; return c }, err: ErrInvoiceNotFound},
		{name: "someone else's invoice", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.InvoiceID = "inv_foreign"; return c }, err: ErrInvoiceNotFound},
		{name: "not delivered", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.InvoiceID = "inv_pending"; return c }, err: ErrReviewNotAllowed},
		{name: "product not on invoice", cmd: func(c CreateReviewCommand) CreateReviewCommand { c.ProductID = "prod_2"; return c }, err: ErrReviewNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.reviews.Create(context.Background(), tc.cmd(reviewCommand("inv_delivered")))
			assert.ErrorIs(t, err, tc.err)
		})
	}
	assert.Empty(t, f.notificationsFor("user_1"))
}

func TestCreateReviewRollsBackWhenVoucherIssueFails(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		vouchers: func(repo repositories.VoucherRepository) repositories.VoucherRepository {
			return failingIssueVouchers{repo}
		},
	})
	putDeliveredInvoice(f, "inv_1", "user_1")
	ctx := context.Background()

	_, err := f.reviews.Create(ctx, reviewCommand("inv_1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReviewAlreadyExists)

	exists, err := f.registry.Reviews().ExistsForInvoiceProduct(ctx, "inv_1", "prod_1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, f.notificationsFor("user_1"))
}

func TestCreateReviewWithoutLedgerSkipsVoucher(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	putDeliveredInvoice(f, "inv_1", "user_1")
	svc, err := NewReviewService(ReviewServiceDeps{
		Reviews:  f.registry.Reviews(),
		Invoices: f.registry.Invoices(),
	})
	require.NoError(t, err)

	result, err := svc.Create(context.Background(), reviewCommand("inv_1"))
	require.NoError(t, err)
	assert.Nil(t, result.Voucher)
	assert.Len(t, result.Review.ID, len("rev_")+26)
}

func TestNewReviewServiceRequiresRepositories(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	_, err := NewReviewService(ReviewServiceDeps{Invoices: f.registry.Invoices()})
	assert.Error(t, err)
	_, err = NewReviewService(ReviewServiceDeps{Reviews: f.registry.Reviews()})
	assert.Error(t, err)
}
