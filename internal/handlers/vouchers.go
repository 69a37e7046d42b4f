package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/httpx"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

type voucherPayload struct {
	ID            string   `json:"id"`
	Code          string   `json:"voucher_code"`
	Name          string   `json:"voucher_name"`
	Description   string   `json:"voucher_description,omitempty"`
	Type          string   `json:"voucher_type"`
	Value         float64  `json:"voucher_value"`
	MaxDiscount   *float64 `json:"voucher_max_discount,omitempty"`
	MinOrderValue float64  `json:"voucher_min_order_value"`
	StartDate     string   `json:"voucher_start_date,omitempty"`
	EndDate       string   `json:"voucher_end_date,omitempty"`
	Count         int      `json:"voucher_count"`
	UsedCount     int      `json:"voucher_used_count"`
	Status        string   `json:"voucher_status"`
	Source        string   `json:"voucher_source,omitempty"`
}

// VoucherHandlers lists the caller's redeemable vouchers.
type VoucherHandlers struct {
	authn    *auth.Authenticator
	vouchers services.VoucherLedger
}

// NewVoucherHandlers constructs voucher handlers.
func NewVoucherHandlers(authn *auth.Authenticator, vouchers services.VoucherLedger) *VoucherHandlers {
	return &VoucherHandlers{
		authn:    authn,
		vouchers: vouchers,
	}
}

// Routes registers the /vouchers endpoints.
func (h *VoucherHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listVouchers)
}

func (h *VoucherHandlers) listVouchers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.vouchers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("voucher_service_unavailable", "voucher service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	vouchers, err := h.vouchers.ListUserVouchers(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]voucherPayload, 0, len(vouchers))
	for _, v := range vouchers {
		items = append(items, buildVoucherPayload(v))
	}
	httpx.WriteData(w, http.StatusOK, items)
}

func buildVoucherPayload(v services.Voucher) voucherPayload {
	payload := voucherPayload{
		ID:            v.ID,
		Code:          v.Code,
		Name:          v.Name,
		Description:   v.Description,
		Type:          string(v.Type),
		Value:         v.Value.InexactFloat64(),
		MinOrderValue: v.MinOrderValue.InexactFloat64(),
		StartDate:     formatTime(v.StartDate),
		EndDate:       formatTime(v.EndDate),
		Count:         v.Count,
		UsedCount:     v.UsedCount,
		Status:        string(v.Status),
		Source:        string(v.Source),
	}
	if v.MaxDiscount != nil {
		max := v.MaxDiscount.InexactFloat64()
		payload.MaxDiscount = &max
	}
	return payload
}
