package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

type stubInvoiceService struct {
	createFn       func(context.Context, services.CreateInvoiceCommand) (services.CreateInvoiceResult, error)
	getFn          func(context.Context, string, services.Actor) (services.Invoice, error)
	listFn         func(context.Context, services.InvoiceListQuery) (domain.Page[services.Invoice], error)
	updateStatusFn func(context.Context, string, services.InvoiceStatus, services.Actor) (services.Invoice, error)
	confirmFn      func(context.Context, string, services.Actor) (services.Invoice, error)
	cancelFn       func(context.Context, string, services.Actor) (services.Invoice, error)
	scheduled      []services.ScheduledConfirmation
	timeoutFn      func(context.Context, string, services.Actor) (services.ScheduledConfirmation, error)
}

func (s *stubInvoiceService) Create(ctx context.Context, cmd services.CreateInvoiceCommand) (services.CreateInvoiceResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.CreateInvoiceResult{}, errors.New("not implemented")
}

func (s *stubInvoiceService) Get(ctx context.Context, id string, actor services.Actor) (services.Invoice, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id, actor)
	}
	return services.Invoice{}, errors.New("not implemented")
}

func (s *stubInvoiceService) List(ctx context.Context, query services.InvoiceListQuery) (domain.Page[services.Invoice], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.Page[services.Invoice]{}, nil
}

func (s *stubInvoiceService) UpdateStatus(ctx context.Context, id string, status services.InvoiceStatus, actor services.Actor) (services.Invoice, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, id, status, actor)
	}
	return services.Invoice{}, errors.New("not implemented")
}

func (s *stubInvoiceService) ConfirmOrder(ctx context.Context, id string, actor services.Actor) (services.Invoice, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, id, actor)
	}
	return services.Invoice{}, errors.New("not implemented")
}

func (s *stubInvoiceService) CancelOrder(ctx context.Context, id string, actor services.Actor) (services.Invoice, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, id, actor)
	}
	return services.Invoice{}, errors.New("not implemented")
}

func (s *stubInvoiceService) ListScheduled(context.Context) []services.ScheduledConfirmation {
	return s.scheduled
}

func (s *stubInvoiceService) ConfirmationTimeout(ctx context.Context, id string, actor services.Actor) (services.ScheduledConfirmation, error) {
	if s.timeoutFn != nil {
		return s.timeoutFn(ctx, id, actor)
	}
	return services.ScheduledConfirmation{}, services.ErrScheduleNotFound
}

var _ services.InvoiceService = (*stubInvoiceService)(nil)

// withIdentity stands in for the Firebase middleware.
func withIdentity(uid string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(roles) == 0 {
				roles = []string{auth.RoleUser}
			}
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: roles})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func mountForTest(path string, routes func(chi.Router), uid string, roles ...string) chi.Router {
	router := chi.NewRouter()
	router.Use(withIdentity(uid, roles...))
	router.Route(path, routes)
	return router
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rr.Body.String())
	}
	return env
}

func sampleHandlerInvoice() services.Invoice {
	created := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	return services.Invoice{
		ID:            "inv_000123",
		UserID:        "user_1",
		ContactName:   "Lan",
		ContactPhone:  "0900000000",
		Shipping:      services.Address{Line: "1 Vo Van Ngan", District: "Thu Duc", Province: "HCM", Country: "VN"},
		PaymentMethod: domain.PaymentMethodCOD,
		Status:        domain.InvoiceStatusPending,
		Products: []services.InvoiceLine{{
			ProductID: "prod_1",
			Name:      "Tee",
			Price:     decimal.RequireFromString("99.99"),
			Size:      "M",
			Color:     "RED",
			Quantity:  2,
			SubTotal:  decimal.RequireFromString("174.98"),
			Promotion: &domain.LinePromotion{
				PromotionID:        "promo_1",
				Name:               "Summer",
				DiscountPercentage: decimal.RequireFromString("12.5"),
				DiscountAmount:     decimal.RequireFromString("12.5"),
			},
		}},
		Total:     decimal.RequireFromString("174.98"),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestInvoiceHandlersCreateInvoice(t *testing.T) {
	var captured services.CreateInvoiceCommand
	svc := &stubInvoiceService{
		createFn: func(_ context.Context, cmd services.CreateInvoiceCommand) (services.CreateInvoiceResult, error) {
			captured = cmd
			return services.CreateInvoiceResult{InvoiceID: "inv_1", Total: decimal.RequireFromString("200")}, nil
		},
	}
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")

	body := `{
		"contact_name": "Lan",
		"contact_phone_number": "0900000000",
		"address_line": "1 Vo Van Ngan",
		"address_district": "Thu Duc",
		"address_province": "HCM",
		"address_country": "VN",
		"payment_method": "cod",
		"voucher_code": " SAVE10 ",
		"bought_items": [{"product_id": "prod_1", "product_color": "red", "product_size": "M", "quantity": 2}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Status != "success" || env.Code != http.StatusCreated {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var data createInvoiceResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.InvoiceID != "inv_1" || data.Total != 200 {
		t.Fatalf("unexpected response %+v", data)
	}
	if captured.UserID != "user_1" {
		t.Fatalf("expected user from identity, got %q", captured.UserID)
	}
	if captured.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("expected upper-cased payment method, got %q", captured.PaymentMethod)
	}
	if captured.VoucherCode != "SAVE10" {
		t.Fatalf("expected trimmed voucher code, got %q", captured.VoucherCode)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].Quantity != 2 || captured.Lines[0].Color != "red" {
		t.Fatalf("unexpected lines %+v", captured.Lines)
	}
	if captured.Shipping.District != "Thu Duc" {
		t.Fatalf("unexpected shipping %+v", captured.Shipping)
	}
}

func TestInvoiceHandlersCreateInvoiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest, wantCode: "invalid_json"},
		{name: "no items", body: `{"bought_items": []}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "insufficient stock", body: `{"bought_items": [{"product_id": "p"}]}`, err: fmt.Errorf("%w: Not enough stock for product Tee", services.ErrInsufficientStock), wantStatus: http.StatusBadRequest, wantCode: "insufficient_stock"},
		{name: "vnpay", body: `{"bought_items": [{"product_id": "p"}]}`, err: services.ErrUnsupportedPaymentMethod, wantStatus: http.StatusBadRequest, wantCode: "unsupported_payment_method"},
		{name: "voucher", body: `{"bought_items": [{"product_id": "p"}]}`, err: services.ErrInvalidVoucher, wantStatus: http.StatusBadRequest, wantCode: "invalid_voucher"},
		{name: "sku missing", body: `{"bought_items": [{"product_id": "p"}]}`, err: services.ErrSKUNotFound, wantStatus: http.StatusNotFound, wantCode: "product_not_found"},
		{name: "transaction", body: `{"bought_items": [{"product_id": "p"}]}`, err: services.ErrTransactionFailure, wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubInvoiceService{
				createFn: func(context.Context, services.CreateInvoiceCommand) (services.CreateInvoiceResult, error) {
					return services.CreateInvoiceResult{}, tc.err
				},
			}
			router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(tc.body)))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if env := decodeEnvelope(t, rr); env.Error != tc.wantCode || env.Status != "error" {
				t.Fatalf("expected error code %s, got %+v", tc.wantCode, env)
			}
		})
	}
}

func TestInvoiceHandlersReportStockShortageDetails(t *testing.T) {
	svc := &stubInvoiceService{
		createFn: func(context.Context, services.CreateInvoiceCommand) (services.CreateInvoiceResult, error) {
			return services.CreateInvoiceResult{}, &services.StockShortageError{ProductID: "prod_1", Color: "black", Size: "M", Requested: 4, Available: 1}
		},
	}
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"bought_items": [{"product_id": "prod_1"}]}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "insufficient_stock" || body["product_id"] != "prod_1" || body["available"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestInvoiceHandlersRequireAuthentication(t *testing.T) {
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, &stubInvoiceService{}).Routes, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInvoiceHandlersListInvoices(t *testing.T) {
	var captured services.InvoiceListQuery
	svc := &stubInvoiceService{
		listFn: func(_ context.Context, query services.InvoiceListQuery) (domain.Page[services.Invoice], error) {
			captured = query
			return domain.Page[services.Invoice]{
				Items:        []services.Invoice{sampleHandlerInvoice()},
				TotalRecords: 11,
				TotalPages:   3,
				PageSize:     5,
				CurrentPage:  2,
			}, nil
		},
	}
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "admin_1", auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/invoices?_page=2&_limit=5&_sort=desc&_sortBy=invoice_total&_invoiceStatus=pending&_userId=user_1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.Actor.Admin || captured.Actor.ID != "admin_1" {
		t.Fatalf("unexpected actor %+v", captured.Actor)
	}
	if captured.Page != 2 || captured.Limit != 5 || !captured.Desc || captured.SortBy != "invoice_total" {
		t.Fatalf("unexpected paging %+v", captured)
	}
	if captured.Status != "pending" || captured.UserID != "user_1" {
		t.Fatalf("unexpected filters %+v", captured)
	}

	env := decodeEnvelope(t, rr)
	var page pagePayload[invoicePayload]
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalRecords != 11 || page.TotalPages != 3 || page.CurrentPage != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	item := page.Items[0]
	if item.Status != "PENDING" || item.Total != 174.98 || item.ShippingAddress.Province != "HCM" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Products[0].Promotion == nil || item.Products[0].Promotion.DiscountPercentage != 12.5 {
		t.Fatalf("expected promotion snapshot, got %+v", item.Products[0])
	}
}

func TestInvoiceHandlersListInvoicesRejectsBadPaging(t *testing.T) {
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, &stubInvoiceService{}).Routes, "user_1")

	for _, query := range []string{"_page=0", "_limit=101", "_limit=abc", "_sort=sideways"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestInvoiceHandlersScheduleJobsRequiresAdmin(t *testing.T) {
	fireAt := time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC)
	svc := &stubInvoiceService{
		scheduled: []services.ScheduledConfirmation{{InvoiceID: "inv_1", NextInvocation: fireAt}},
	}

	userRouter := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")
	rr := httptest.NewRecorder()
	userRouter.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/schedule-jobs", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}

	adminRouter := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "admin_1", auth.RoleAdmin)
	rr = httptest.NewRecorder()
	adminRouter.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/schedule-jobs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var jobs []scheduledConfirmationPayload
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].InvoiceID != "inv_1" || jobs[0].NextInvocation != "2025-05-06T09:30:00Z" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestInvoiceHandlersGetInvoiceNotFoundForOtherUser(t *testing.T) {
	svc := &stubInvoiceService{
		getFn: func(_ context.Context, id string, actor services.Actor) (services.Invoice, error) {
			if actor.ID != "user_1" {
				return services.Invoice{}, services.ErrInvoiceNotFound
			}
			return sampleHandlerInvoice(), nil
		},
	}

	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/inv_000123", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invoice_not_found" {
		t.Fatalf("unexpected error %+v", env)
	}

	router = mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/inv_000123", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestInvoiceHandlersConfirmationTimeout(t *testing.T) {
	fireAt := time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC)
	svc := &stubInvoiceService{
		timeoutFn: func(_ context.Context, id string, _ services.Actor) (services.ScheduledConfirmation, error) {
			if id == "inv_done" {
				return services.ScheduledConfirmation{}, services.ErrScheduleNotFound
			}
			return services.ScheduledConfirmation{InvoiceID: id, NextInvocation: fireAt}, nil
		},
	}
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/inv_1/confirmation-timeout", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/inv_done/confirmation-timeout", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "schedule_not_found" {
		t.Fatalf("unexpected error %+v", env)
	}
}

func TestInvoiceHandlersUpdateStatus(t *testing.T) {
	var gotStatus services.InvoiceStatus
	svc := &stubInvoiceService{
		updateStatusFn: func(_ context.Context, id string, status services.InvoiceStatus, actor services.Actor) (services.Invoice, error) {
			gotStatus = status
			if status == "DELIVERED" {
				return services.Invoice{}, fmt.Errorf("%w: PENDING -> DELIVERED", services.ErrInvalidTransition)
			}
			inv := sampleHandlerInvoice()
			inv.Status = domain.InvoiceStatusConfirmed
			return inv, nil
		},
	}
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "admin_1", auth.RoleAdmin)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/status?_status=CONFIRMED", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotStatus != "CONFIRMED" {
		t.Fatalf("expected CONFIRMED, got %s", gotStatus)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/status?_status=DELIVERED", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid transition, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != "invalid_transition" {
		t.Fatalf("unexpected error %+v", env)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/status", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without _status, got %d", rr.Code)
	}
}

func TestInvoiceHandlersConfirmAndCancel(t *testing.T) {
	var confirmedBy, cancelledBy services.Actor
	svc := &stubInvoiceService{
		confirmFn: func(_ context.Context, _ string, actor services.Actor) (services.Invoice, error) {
			confirmedBy = actor
			inv := sampleHandlerInvoice()
			inv.Status = domain.InvoiceStatusConfirmed
			return inv, nil
		},
		cancelFn: func(_ context.Context, _ string, actor services.Actor) (services.Invoice, error) {
			cancelledBy = actor
			inv := sampleHandlerInvoice()
			inv.Status = domain.InvoiceStatusRequestCancel
			return inv, nil
		},
	}

	userRouter := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "user_1")
	rr := httptest.NewRecorder()
	userRouter.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/confirm", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user confirm, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	userRouter.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/cancel", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for user cancel, got %d", rr.Code)
	}
	if cancelledBy.ID != "user_1" || cancelledBy.Admin {
		t.Fatalf("unexpected cancel actor %+v", cancelledBy)
	}
	var inv invoicePayload
	if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if inv.Status != "REQUEST_CANCEL" {
		t.Fatalf("expected REQUEST_CANCEL, got %s", inv.Status)
	}

	adminRouter := mountForTest("/invoices", NewInvoiceHandlers(nil, svc).Routes, "admin_1", auth.RoleAdmin)
	rr = httptest.NewRecorder()
	adminRouter.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/invoices/inv_000123/confirm", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin confirm, got %d", rr.Code)
	}
	if !confirmedBy.Admin || confirmedBy.ID != "admin_1" {
		t.Fatalf("unexpected confirm actor %+v", confirmedBy)
	}
}

func TestInvoiceHandlersCheckoutRateLimit(t *testing.T) {
	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	svc := &stubInvoiceService{
		createFn: func(context.Context, services.CreateInvoiceCommand) (services.CreateInvoiceResult, error) {
			return services.CreateInvoiceResult{InvoiceID: "inv_1", Total: decimal.NewFromInt(1)}, nil
		},
	}
	handlers := NewInvoiceHandlers(nil, svc, WithCheckoutRateLimit(1, time.Minute, func() time.Time { return now }))
	router := mountForTest("/invoices", handlers.Routes, "user_1")
	body := `{"bought_items": [{"product_id": "p", "quantity": 1}]}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected first checkout to pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body)))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestInvoiceHandlersServiceUnavailable(t *testing.T) {
	router := mountForTest("/invoices", NewInvoiceHandlers(nil, nil).Routes, "user_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
