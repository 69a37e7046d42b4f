package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/httpx"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

const maxJSONBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// decodeJSONBody reads at most limit bytes from the request and unmarshals them into dst.
func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return errBodyTooLarge
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", err.Error(), http.StatusBadRequest))
	}
}

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// requireAdmin rejects callers without the admin role. It must run after authentication.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity, ok := requireIdentity(ctx, w)
		if !ok {
			return
		}
		if !identity.IsAdmin() {
			httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "admin role required", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromIdentity(identity *auth.Identity) services.Actor {
	return services.Actor{
		ID:    strings.TrimSpace(identity.UID),
		Admin: identity.IsAdmin(),
	}
}

// parseBoolParam accepts "true" and "false"; anything else leaves the filter unset.
func parseBoolParam(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePointer(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	value := formatTime(*t)
	return &value
}

func writePaginationError(ctx context.Context, w http.ResponseWriter, err error) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_pagination", strings.TrimPrefix(err.Error(), "pagination: "), http.StatusBadRequest))
}

// writeServiceError maps service sentinels onto HTTP errors. Unknown errors become 500 without
// leaking their text.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvoiceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_not_found", "invoice not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrSKUNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	case errors.Is(err, services.ErrScheduleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("schedule_not_found", "no confirmation job is scheduled for this invoice", http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpErr := httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest)
		var shortage *services.StockShortageError
		if errors.As(err, &shortage) && shortage.Requested > 0 {
			httpErr = httpErr.WithDetails(map[string]any{
				"product_id": shortage.ProductID,
				"color":      shortage.Color,
				"size":       shortage.Size,
				"available":  shortage.Available,
			})
		}
		httpx.WriteError(ctx, w, httpErr)
	case errors.Is(err, services.ErrInvalidVoucher):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_voucher", "used or expired voucher code", http.StatusBadRequest))
	case errors.Is(err, services.ErrUnsupportedPaymentMethod):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_payment_method", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "product already reviewed for this invoice", http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_allowed", "you can only review products you have purchased", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvoiceInvalidInput),
		errors.Is(err, services.ErrNotificationInvalidInput),
		errors.Is(err, services.ErrReviewInvalidInput),
		errors.Is(err, services.ErrVoucherInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}

// pagePayload is the list envelope shared by paginated endpoints.
type pagePayload[T any] struct {
	Items        []T `json:"items"`
	TotalRecords int `json:"total_records"`
	TotalPages   int `json:"total_pages"`
	PageSize     int `json:"page_size"`
	CurrentPage  int `json:"current_page"`
}

func newPagePayload[S, T any](page domain.Page[S], convert func(S) T) pagePayload[T] {
	out := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, convert(item))
	}
	return pagePayload[T]{
		Items:        out,
		TotalRecords: page.TotalRecords,
		TotalPages:   page.TotalPages,
		PageSize:     page.PageSize,
		CurrentPage:  page.CurrentPage,
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
