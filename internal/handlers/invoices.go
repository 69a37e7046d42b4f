package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/httpx"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/pagination"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

var invoiceListOptions = pagination.Options{
	DefaultLimit:  10,
	MaxLimit:      100,
	DefaultSortBy: "createdAt",
	AllowedSortBy: []string{"createdAt", "updatedAt", "invoice_total"},
}

type createInvoiceRequest struct {
	ContactName     string                   `json:"contact_name"`
	ContactPhone    string                   `json:"contact_phone_number"`
	AddressLine     string                   `json:"address_line"`
	AddressDistrict string                   `json:"address_district"`
	AddressProvince string                   `json:"address_province"`
	AddressCountry  string                   `json:"address_country"`
	Note            string                   `json:"note"`
	PaymentMethod   string                   `json:"payment_method"`
	VoucherCode     string                   `json:"voucher_code"`
	BoughtItems     []createInvoiceItemInput `json:"bought_items"`
}

type createInvoiceItemInput struct {
	ProductID string `json:"product_id"`
	Color     string `json:"product_color"`
	Size      string `json:"product_size"`
	Quantity  int    `json:"quantity"`
}

type createInvoiceResponse struct {
	InvoiceID string  `json:"invoice_id"`
	Total     float64 `json:"invoice_total"`
}

type invoicePayload struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	ContactName     string                 `json:"contact_name"`
	ContactPhone    string                 `json:"contact_phone_number"`
	ShippingAddress addressPayload         `json:"shipping_address"`
	Note            string                 `json:"note,omitempty"`
	PaymentMethod   string                 `json:"payment_method"`
	Status          string                 `json:"invoice_status"`
	Products        []invoiceLinePayload   `json:"invoice_products"`
	Total           float64                `json:"invoice_total"`
	AppliedVoucher  *appliedVoucherPayload `json:"applied_voucher,omitempty"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

type addressPayload struct {
	Line     string `json:"line"`
	District string `json:"district"`
	Province string `json:"province"`
	Country  string `json:"country"`
}

type invoiceLinePayload struct {
	ProductID string                `json:"product_id"`
	Name      string                `json:"product_name"`
	Image     string                `json:"product_image,omitempty"`
	Price     float64               `json:"product_price"`
	Size      string                `json:"product_size"`
	Color     string                `json:"product_color"`
	Quantity  int                   `json:"quantity"`
	SubTotal  float64               `json:"product_sub_total_price"`
	Promotion *linePromotionPayload `json:"promotion,omitempty"`
}

type linePromotionPayload struct {
	PromotionID        string  `json:"promotion_id"`
	Name               string  `json:"promotion_name"`
	DiscountPercentage float64 `json:"discount_percentage"`
	DiscountAmount     float64 `json:"discount_amount"`
}

type appliedVoucherPayload struct {
	VoucherID      string  `json:"voucher_id"`
	Code           string  `json:"voucher_code"`
	Type           string  `json:"voucher_type"`
	Value          float64 `json:"voucher_value"`
	DiscountAmount float64 `json:"discount_amount"`
}

type scheduledConfirmationPayload struct {
	InvoiceID      string `json:"invoiceId"`
	NextInvocation string `json:"nextInvocation"`
}

// InvoiceHandlers exposes checkout and invoice lifecycle endpoints.
type InvoiceHandlers struct {
	authn           *auth.Authenticator
	invoices        services.InvoiceService
	checkoutLimiter *windowLimiter
}

// InvoiceHandlerOption customises InvoiceHandlers.
type InvoiceHandlerOption func(*InvoiceHandlers)

// WithCheckoutRateLimit allows each user at most limit invoice creations per window.
func WithCheckoutRateLimit(limit int, window time.Duration, clock func() time.Time) InvoiceHandlerOption {
	return func(h *InvoiceHandlers) {
		h.checkoutLimiter = newWindowLimiter(limit, window, clock)
	}
}

// NewInvoiceHandlers constructs invoice handlers enforcing Firebase authentication.
func NewInvoiceHandlers(authn *auth.Authenticator, invoices services.InvoiceService, opts ...InvoiceHandlerOption) *InvoiceHandlers {
	h := &InvoiceHandlers{
		authn:    authn,
		invoices: invoices,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /invoices endpoints.
func (h *InvoiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.With(h.checkoutLimiter.perUser).Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.With(requireAdmin).Get("/schedule-jobs", h.listScheduleJobs)
	r.Get("/{invoiceID}", h.getInvoice)
	r.Get("/{invoiceID}/confirmation-timeout", h.getConfirmationTimeout)
	r.With(requireAdmin).Patch("/{invoiceID}/status", h.updateStatus)
	r.With(requireAdmin).Patch("/{invoiceID}/confirm", h.confirmOrder)
	r.Patch("/{invoiceID}/cancel", h.cancelOrder)
}

func (h *InvoiceHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.invoices == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invoice_service_unavailable", "invoice service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *InvoiceHandlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if err := decodeJSONBody(r, maxJSONBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if len(req.BoughtItems) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "bought_items must not be empty", http.StatusBadRequest))
		return
	}

	lines := make([]services.InvoiceLineInput, 0, len(req.BoughtItems))
	for _, item := range req.BoughtItems {
		lines = append(lines, services.InvoiceLineInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Color:     strings.TrimSpace(item.Color),
			Size:      strings.TrimSpace(item.Size),
			Quantity:  item.Quantity,
		})
	}

	result, err := h.invoices.Create(ctx, services.CreateInvoiceCommand{
		UserID:       identity.UID,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Shipping: services.Address{
			Line:     req.AddressLine,
			District: req.AddressDistrict,
			Province: req.AddressProvince,
			Country:  req.AddressCountry,
		},
		Note:          req.Note,
		PaymentMethod: services.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		Lines:         lines,
		VoucherCode:   strings.TrimSpace(req.VoucherCode),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusCreated, createInvoiceResponse{
		InvoiceID: result.InvoiceID,
		Total:     result.Total.InexactFloat64(),
	})
}

func (h *InvoiceHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, invoiceListOptions)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	query := r.URL.Query()

	page, err := h.invoices.List(ctx, services.InvoiceListQuery{
		Actor:  actorFromIdentity(identity),
		UserID: strings.TrimSpace(query.Get("_userId")),
		Status: strings.TrimSpace(query.Get("_invoiceStatus")),
		SortBy: params.SortBy,
		Desc:   params.Desc,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusOK, newPagePayload(page, buildInvoicePayload))
}

func (h *InvoiceHandlers) listScheduleJobs(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	jobs := h.invoices.ListScheduled(r.Context())
	payload := make([]scheduledConfirmationPayload, 0, len(jobs))
	for _, job := range jobs {
		payload = append(payload, buildScheduledConfirmationPayload(job))
	}
	httpx.WriteData(w, http.StatusOK, payload)
}

func (h *InvoiceHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	invoice, err := h.invoices.Get(ctx, invoiceID, actorFromIdentity(identity))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildInvoicePayload(invoice))
}

func (h *InvoiceHandlers) getConfirmationTimeout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	job, err := h.invoices.ConfirmationTimeout(ctx, invoiceID, actorFromIdentity(identity))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildScheduledConfirmationPayload(job))
}

func (h *InvoiceHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("_status"))
	if status == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "_status is required", http.StatusBadRequest))
		return
	}

	invoice, err := h.invoices.UpdateStatus(ctx, invoiceID, services.InvoiceStatus(status), actorFromIdentity(identity))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildInvoicePayload(invoice))
}

func (h *InvoiceHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	invoice, err := h.invoices.ConfirmOrder(ctx, invoiceID, actorFromIdentity(identity))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildInvoicePayload(invoice))
}

func (h *InvoiceHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	invoiceID, ok := invoiceIDParam(w, r)
	if !ok {
		return
	}

	invoice, err := h.invoices.CancelOrder(ctx, invoiceID, actorFromIdentity(identity))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildInvoicePayload(invoice))
}

func invoiceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	invoiceID := strings.TrimSpace(chi.URLParam(r, "invoiceID"))
	if invoiceID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invoice id is required", http.StatusBadRequest))
		return "", false
	}
	return invoiceID, true
}

func buildInvoicePayload(invoice services.Invoice) invoicePayload {
	lines := make([]invoiceLinePayload, 0, len(invoice.Products))
	for _, line := range invoice.Products {
		lines = append(lines, buildInvoiceLinePayload(line))
	}
	payload := invoicePayload{
		ID:           invoice.ID,
		UserID:       invoice.UserID,
		ContactName:  invoice.ContactName,
		ContactPhone: invoice.ContactPhone,
		ShippingAddress: addressPayload{
			Line:     invoice.Shipping.Line,
			District: invoice.Shipping.District,
			Province: invoice.Shipping.Province,
			Country:  invoice.Shipping.Country,
		},
		Note:          invoice.Note,
		PaymentMethod: string(invoice.PaymentMethod),
		Status:        string(invoice.Status),
		Products:      lines,
		Total:         invoice.Total.InexactFloat64(),
		CreatedAt:     formatTime(invoice.CreatedAt),
		UpdatedAt:     formatTime(invoice.UpdatedAt),
	}
	if v := invoice.AppliedVoucher; v != nil {
		payload.AppliedVoucher = &appliedVoucherPayload{
			VoucherID:      v.VoucherID,
			Code:           v.Code,
			Type:           string(v.Type),
			Value:          v.Value.InexactFloat64(),
			DiscountAmount: v.DiscountAmount.InexactFloat64(),
		}
	}
	return payload
}

func buildInvoiceLinePayload(line domain.InvoiceLine) invoiceLinePayload {
	payload := invoiceLinePayload{
		ProductID: line.ProductID,
		Name:      line.Name,
		Image:     line.Image,
		Price:     line.Price.InexactFloat64(),
		Size:      line.Size,
		Color:     line.Color,
		Quantity:  line.Quantity,
		SubTotal:  line.SubTotal.InexactFloat64(),
	}
	if promo := line.Promotion; promo != nil {
		payload.Promotion = &linePromotionPayload{
			PromotionID:        promo.PromotionID,
			Name:               promo.Name,
			DiscountPercentage: promo.DiscountPercentage.InexactFloat64(),
			DiscountAmount:     promo.DiscountAmount.InexactFloat64(),
		}
	}
	return payload
}

func buildScheduledConfirmationPayload(job services.ScheduledConfirmation) scheduledConfirmationPayload {
	return scheduledConfirmationPayload{
		InvoiceID:      job.InvoiceID,
		NextInvocation: formatTime(job.NextInvocation),
	}
}
