package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	invoiceEventCreated       = "invoice.created"
	invoiceEventStatusChanged = "invoice.status_changed"

	invoiceIDPrefix = "inv_"

	maxInvoiceLines     = 50
	maxContactFieldSize = 200
	maxInvoiceNoteSize  = 1000
	maxInvoiceListLimit = 100
)

var (
	// ErrInvoiceInvalidInput signals the caller provided invalid data.
	ErrInvoiceInvalidInput = errors.New("invoice: invalid input")
	// ErrInvoiceNotFound indicates the invoice does not exist or is not visible to the caller.
	ErrInvoiceNotFound = errors.New("invoice: not found")
	// ErrInvalidTransition indicates the requested status cannot follow the current one.
	ErrInvalidTransition = errors.New("invoice: invalid status transition")
	// ErrUnsupportedPaymentMethod indicates a known payment method that cannot be used yet.
	ErrUnsupportedPaymentMethod = errors.New("invoice: unsupported payment method")
	// ErrProductNotFound indicates an invoice line references an unknown product.
	ErrProductNotFound = errors.New("invoice: product not found")
	// ErrTransactionFailure indicates the creation transaction could not be committed.
	ErrTransactionFailure = errors.New("invoice: transaction failed")
)

var invoiceStateTransitions = map[InvoiceStatus][]InvoiceStatus{
	domain.InvoiceStatusPending:       {domain.InvoiceStatusConfirmed, domain.InvoiceStatusCancelled},
	domain.InvoiceStatusConfirmed:     {domain.InvoiceStatusOnPreparing},
	domain.InvoiceStatusOnPreparing:   {domain.InvoiceStatusRequestCancel, domain.InvoiceStatusOnDelivering},
	domain.InvoiceStatusRequestCancel: {domain.InvoiceStatusCancelled},
	domain.InvoiceStatusOnDelivering:  {domain.InvoiceStatusDelivered},
}

var invoiceSortFields = []repositories.InvoiceSortField{
	repositories.InvoiceSortCreatedAt,
	repositories.InvoiceSortUpdatedAt,
	repositories.InvoiceSortTotal,
}

// CanTransition reports whether an invoice in status from may move to status to.
func CanTransition(from, to InvoiceStatus) bool {
	return slices.Contains(invoiceStateTransitions[from], to)
}

// InvoiceServiceDeps bundles collaborators required to construct the invoice service.
type InvoiceServiceDeps struct {
	Invoices    repositories.InvoiceRepository
	Products    repositories.ProductRepository
	Inventory   InventoryGuard
	Vouchers    VoucherLedger
	Pricing     PromotionResolver
	Scheduler   ConfirmationScheduler
	Notifier    InvoiceNotifier
	Events      InvoiceEventPublisher
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type invoiceService struct {
	invoices   repositories.InvoiceRepository
	products   repositories.ProductRepository
	inventory  InventoryGuard
	vouchers   VoucherLedger
	pricing    PromotionResolver
	scheduler  ConfirmationScheduler
	notifier   InvoiceNotifier
	events     InvoiceEventPublisher
	unitOfWork repositories.UnitOfWork
	sanitizer  *bluemonday.Policy
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewInvoiceService wires dependencies into a concrete InvoiceService implementation.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Invoices == nil {
		return nil, errors.New("invoice service: invoice repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("invoice service: product repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("invoice service: inventory guard is required")
	}
	if deps.Vouchers == nil {
		return nil, errors.New("invoice service: voucher ledger is required")
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

	return &invoiceService{
		invoices:   deps.Invoices,
		products:   deps.Products,
		inventory:  deps.Inventory,
		vouchers:   deps.Vouchers,
		pricing:    deps.Pricing,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		events:     deps.Events,
		unitOfWork: unit,
		sanitizer:  bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *invoiceService) Create(ctx context.Context, cmd CreateInvoiceCommand) (CreateInvoiceResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CreateInvoiceResult{}, fmt.Errorf("%w: user id is required", ErrInvoiceInvalidInput)
	}

	contactName, err := s.requiredField("contact name", cmd.ContactName, maxContactFieldSize)
	if err != nil {
		return CreateInvoiceResult{}, err
	}
	contactPhone, err := s.requiredField("contact phone", cmd.ContactPhone, maxContactFieldSize)
	if err != nil {
		return CreateInvoiceResult{}, err
	}
	shipping, err := s.shippingAddress(cmd.Shipping)
	if err != nil {
		return CreateInvoiceResult{}, err
	}
	note := s.clean(cmd.Note)
	if len(note) > maxInvoiceNoteSize {
		return CreateInvoiceResult{}, fmt.Errorf("%w: note exceeds %d characters", ErrInvoiceInvalidInput, maxInvoiceNoteSize)
	}

	method := PaymentMethod(strings.ToUpper(strings.TrimSpace(string(cmd.PaymentMethod))))
	switch method {
	case domain.PaymentMethodCOD:
	case domain.PaymentMethodVNPay:
		return CreateInvoiceResult{}, fmt.Errorf("%w: %s is not supported yet", ErrUnsupportedPaymentMethod, method)
	default:
		return CreateInvoiceResult{}, fmt.Errorf("%w: invalid payment method", ErrInvoiceInvalidInput)
	}

	lines, err := normaliseLines(cmd.Lines)
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	if err := s.inventory.EnsureAvailable(ctx, lines); err != nil {
		return CreateInvoiceResult{}, err
	}

	now := s.now()
	products := make([]InvoiceLine, 0, len(lines))
	running := decimal.Zero
	for _, line := range lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return CreateInvoiceResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return CreateInvoiceResult{}, fmt.Errorf("invoice: load product %s: %w", line.ProductID, err)
		}
		priced := s.pricing.Resolve(product, line.Quantity, now)
		products = append(products, InvoiceLine{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.PrimaryImage(),
			Price:     priced.UnitPrice,
			Size:      line.Size,
			Color:     line.Color,
			Quantity:  line.Quantity,
			SubTotal:  priced.SubTotal,
			Promotion: priced.Promotion,
		})
		running = running.Add(priced.SubTotal)
	}

	application, err := s.vouchers.ApplyVoucher(ctx, cmd.VoucherCode, userID, running)
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	invoice := Invoice{
		ID:             s.nextInvoiceID(),
		UserID:         userID,
		ContactName:    contactName,
		ContactPhone:   contactPhone,
		Shipping:       shipping,
		Note:           note,
		PaymentMethod:  method,
		Status:         domain.InvoiceStatusPending,
		Products:       products,
		Total:          application.FinalAmount,
		AppliedVoucher: application.Voucher,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.inventory.Reserve(txCtx, lines); err != nil {
			return err
		}
		if err := s.invoices.Insert(txCtx, invoice); err != nil {
			return err
		}
		if application.Applied {
			return s.vouchers.MarkVoucherAsUsed(txCtx, application.Voucher.VoucherID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrSKUNotFound) || errors.Is(err, ErrInvalidVoucher) {
			return CreateInvoiceResult{}, err
		}
		return CreateInvoiceResult{}, fmt.Errorf("%w: %v", ErrTransactionFailure, err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(invoice.ID, invoice.CreatedAt)
	}
	s.publishEvent(ctx, InvoiceEvent{
		Type:          invoiceEventCreated,
		InvoiceID:     invoice.ID,
		UserID:        invoice.UserID,
		CurrentStatus: string(invoice.Status),
		ActorID:       userID,
		Total:         invoice.Total.StringFixed(2),
		OccurredAt:    now,
	})
	if s.notifier != nil {
		s.notifier.NotifyNewInvoice(ctx, invoice)
	}

	return CreateInvoiceResult{InvoiceID: invoice.ID, Total: invoice.Total, Invoice: invoice}, nil
}

func (s *invoiceService) Get(ctx context.Context, invoiceID string, actor Actor) (Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return Invoice{}, fmt.Errorf("%w: invoice id is required", ErrInvoiceInvalidInput)
	}
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return Invoice{}, s.mapRepositoryError(err)
	}
	if !actor.Admin && invoice.UserID != actor.ID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *invoiceService) List(ctx context.Context, query InvoiceListQuery) (domain.Page[Invoice], error) {
	if query.Page < 1 {
		return domain.Page[Invoice]{}, fmt.Errorf("%w: page must be a positive number", ErrInvoiceInvalidInput)
	}
	if query.Limit < 1 || query.Limit > maxInvoiceListLimit {
		return domain.Page[Invoice]{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvoiceInvalidInput, maxInvoiceListLimit)
	}

	filter := repositories.InvoiceListFilter{
		UserID: strings.TrimSpace(query.UserID),
		SortBy: repositories.InvoiceSortCreatedAt,
		Desc:   query.Desc,
		Page:   query.Page,
		Limit:  query.Limit,
	}
	if !query.Actor.Admin {
		filter.UserID = query.Actor.ID
	}
	if sortBy := repositories.InvoiceSortField(strings.TrimSpace(query.SortBy)); slices.Contains(invoiceSortFields, sortBy) {
		filter.SortBy = sortBy
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := InvoiceStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return domain.Page[Invoice]{}, fmt.Errorf("%w: invalid invoice status", ErrInvoiceInvalidInput)
		}
		filter.Status = &status
	}

	page, err := s.invoices.List(ctx, filter)
	if err != nil {
		return domain.Page[Invoice]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *invoiceService) UpdateStatus(ctx context.Context, invoiceID string, status InvoiceStatus, actor Actor) (Invoice, error) {
	target := InvoiceStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !target.Valid() {
		return Invoice{}, fmt.Errorf("%w: invalid status", ErrInvoiceInvalidInput)
	}
	current, err := s.Get(ctx, invoiceID, Actor{Admin: true})
	if err != nil {
		return Invoice{}, err
	}
	return s.transition(ctx, current, target, actor)
}

func (s *invoiceService) ConfirmOrder(ctx context.Context, invoiceID string, actor Actor) (Invoice, error) {
	current, err := s.Get(ctx, invoiceID, Actor{Admin: true})
	if err != nil {
		return Invoice{}, err
	}
	updated, err := s.transition(ctx, current, domain.InvoiceStatusConfirmed, actor)
	if err != nil {
		return Invoice{}, err
	}
	s.cancelSchedule(ctx, updated.ID)
	return updated, nil
}

func (s *invoiceService) CancelOrder(ctx context.Context, invoiceID string, actor Actor) (Invoice, error) {
	current, err := s.Get(ctx, invoiceID, actor)
	if err != nil {
		return Invoice{}, err
	}
	updated, err := s.transition(ctx, current, domain.InvoiceStatusRequestCancel, actor)
	if err != nil {
		return Invoice{}, err
	}
	s.cancelSchedule(ctx, updated.ID)
	return updated, nil
}

func (s *invoiceService) ListScheduled(context.Context) []ScheduledConfirmation {
	if s.scheduler == nil {
		return []ScheduledConfirmation{}
	}
	return s.scheduler.ListScheduled()
}

func (s *invoiceService) ConfirmationTimeout(ctx context.Context, invoiceID string, actor Actor) (ScheduledConfirmation, error) {
	invoice, err := s.Get(ctx, invoiceID, actor)
	if err != nil {
		return ScheduledConfirmation{}, err
	}
	if s.scheduler == nil {
		return ScheduledConfirmation{}, ErrScheduleNotFound
	}
	next, err := s.scheduler.GetTimeoutFor(ctx, invoice.ID)
	if err != nil {
		return ScheduledConfirmation{}, err
	}
	return ScheduledConfirmation{InvoiceID: invoice.ID, NextInvocation: next}, nil
}

// transition persists current -> target with a write conditioned on the stored status still being
// current's. Entering CANCELLED returns reserved stock in the same transaction.
func (s *invoiceService) transition(ctx context.Context, current Invoice, target InvoiceStatus, actor Actor) (Invoice, error) {
	if !CanTransition(current.Status, target) {
		return Invoice{}, invalidTransition(current.Status, target)
	}

	now := s.now()
	var updated Invoice
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.invoices.UpdateStatus(txCtx, current.ID, current.Status, target, now)
		if err != nil {
			return err
		}
		if target == domain.InvoiceStatusCancelled {
			return s.inventory.Restock(txCtx, updated)
		}
		return nil
	})
	if err != nil {
		if repositories.IsConflict(err) {
			if fresh, findErr := s.invoices.FindByID(ctx, current.ID); findErr == nil {
				return Invoice{}, invalidTransition(fresh.Status, target)
			}
		}
		if errors.Is(err, ErrSKUNotFound) || errors.Is(err, ErrInsufficientStock) {
			return Invoice{}, err
		}
		return Invoice{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, InvoiceEvent{
		Type:           invoiceEventStatusChanged,
		InvoiceID:      updated.ID,
		UserID:         updated.UserID,
		PreviousStatus: string(current.Status),
		CurrentStatus:  string(updated.Status),
		ActorID:        actor.ID,
		Total:          updated.Total.StringFixed(2),
		OccurredAt:     now,
	})
	if s.notifier != nil {
		s.notifier.NotifyInvoiceStatusChange(ctx, updated, current.Status)
	}
	return updated, nil
}

func (s *invoiceService) cancelSchedule(ctx context.Context, invoiceID string) {
	if s.scheduler == nil {
		return
	}
	if !s.scheduler.Cancel(invoiceID) {
		s.logger(ctx, "invoice.schedule.cancel.missing", map[string]any{"invoiceId": invoiceID})
	}
}

func (s *invoiceService) requiredField(name, value string, limit int) (string, error) {
	cleaned := s.clean(value)
	if cleaned == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvoiceInvalidInput, name)
	}
	if len(cleaned) > limit {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvoiceInvalidInput, name, limit)
	}
	return cleaned, nil
}

func (s *invoiceService) shippingAddress(addr Address) (Address, error) {
	var (
		out Address
		err error
	)
	if out.Line, err = s.requiredField("address line", addr.Line, maxContactFieldSize); err != nil {
		return Address{}, err
	}
	if out.District, err = s.requiredField("address district", addr.District, maxContactFieldSize); err != nil {
		return Address{}, err
	}
	if out.Province, err = s.requiredField("address province", addr.Province, maxContactFieldSize); err != nil {
		return Address{}, err
	}
	if out.Country, err = s.requiredField("address country", addr.Country, maxContactFieldSize); err != nil {
		return Address{}, err
	}
	return out, nil
}

func (s *invoiceService) clean(value string) string {
	return plainText(s.sanitizer, value)
}

// plainText strips markup from user input. Entities escaped by the policy are decoded again so the
// stored value stays plain text.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(value))))
}

func normaliseLines(lines []InvoiceLineInput) ([]InvoiceLineInput, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", ErrInvoiceInvalidInput)
	}
	if len(lines) > maxInvoiceLines {
		return nil, fmt.Errorf("%w: at most %d products per invoice", ErrInvoiceInvalidInput, maxInvoiceLines)
	}
	out := make([]InvoiceLineInput, 0, len(lines))
	for i, line := range lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		line.Color = strings.TrimSpace(line.Color)
		line.Size = strings.TrimSpace(line.Size)
		switch {
		case line.ProductID == "":
			return nil, fmt.Errorf("%w: products[%d] product id is required", ErrInvoiceInvalidInput, i)
		case line.Color == "" || line.Size == "":
			return nil, fmt.Errorf("%w: products[%d] color and size are required", ErrInvoiceInvalidInput, i)
		case line.Quantity < 1:
			return nil, fmt.Errorf("%w: products[%d] quantity must be positive", ErrInvoiceInvalidInput, i)
		}
		out = append(out, line)
	}
	return out, nil
}

func invalidTransition(from, to InvoiceStatus) error {
	return fmt.Errorf("%w: cannot update status from %s to %s", ErrInvalidTransition, from, to)
}

func (s *invoiceService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInvoiceNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("invoice: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *invoiceService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *invoiceService) now() time.Time {
	return s.clock()
}

func (s *invoiceService) nextInvoiceID() string {
	return invoiceIDPrefix + s.newID()
}

func (s *invoiceService) publishEvent(ctx context.Context, event InvoiceEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishInvoiceEvent(ctx, event); err != nil {
		s.logger(ctx, "invoice.event.publish.failed", map[string]any{
			"type":    event.Type,
			"invoice": event.InvoiceID,
			"error":   err.Error(),
			"status":  event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
