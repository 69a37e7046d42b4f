package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/httpx"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

const maxReviewBodySize = 32 * 1024

type createReviewRequest struct {
	ProductID string `json:"product_id"`
	InvoiceID string `json:"invoice_id"`
	Rating    int    `json:"review_rating"`
	Content   string `json:"content"`
}

type reviewPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	InvoiceID string `json:"invoice_id"`
	Rating    int    `json:"review_rating"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type createReviewResponse struct {
	Review  reviewPayload   `json:"review"`
	Voucher *voucherPayload `json:"voucher,omitempty"`
}

// ReviewHandlers exposes the review submission endpoint.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
	}
}

// Routes registers the /reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createReview)
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createReviewRequest
	if err := decodeJSONBody(r, maxReviewBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		UserID:    strings.TrimSpace(identity.UID),
		ProductID: strings.TrimSpace(req.ProductID),
		InvoiceID: strings.TrimSpace(req.InvoiceID),
		Rating:    req.Rating,
		Content:   req.Content,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := createReviewResponse{
		Review: reviewPayload{
			ID:        result.Review.ID,
			UserID:    result.Review.UserID,
			ProductID: result.Review.ProductID,
			InvoiceID: result.Review.InvoiceID,
			Rating:    result.Review.Rating,
			Content:   result.Review.Content,
			CreatedAt: formatTime(result.Review.CreatedAt),
		},
	}
	if result.Voucher != nil {
		payload := buildVoucherPayload(*result.Voucher)
		resp.Voucher = &payload
	}
	httpx.WriteData(w, http.StatusCreated, resp)
}
