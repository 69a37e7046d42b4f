package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/auth"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/httpx"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/pagination"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

var notificationListOptions = pagination.Options{
	DefaultLimit: 10,
	MaxLimit:     100,
	DefaultDesc:  true,
}

type systemNotificationRequest struct {
	UserIDs  []string       `json:"user_ids"`
	AdminIDs []string       `json:"admin_ids"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data"`
}

type countPayload struct {
	Count int `json:"count"`
}

type newEntitiesCountPayload struct {
	NewInvoices int `json:"newInvoices"`
	NewReviews  int `json:"newReviews"`
}

type adminMetricsPayload struct {
	Timeframe        string         `json:"timeframe"`
	TotalNewInvoices int            `json:"totalNewInvoices"`
	TotalNewReviews  int            `json:"totalNewReviews"`
	InvoiceStatuses  map[string]int `json:"invoiceStatuses"`
	ReviewRatings    map[string]int `json:"reviewRatings"`
	AverageRating    float64        `json:"averageRating"`
}

// NotificationHandlers exposes the notification inbox and admin dashboards.
type NotificationHandlers struct {
	authn         *auth.Authenticator
	notifications services.NotificationService
}

// NewNotificationHandlers constructs notification handlers enforcing Firebase authentication.
func NewNotificationHandlers(authn *auth.Authenticator, notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{
		authn:         authn,
		notifications: notifications,
	}
}

// Routes registers the /notifications endpoints.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/user", h.listUserNotifications)
	r.Get("/unread-count", h.unreadCount)
	r.Get("/new-entities-count", h.newEntitiesCount)
	r.Patch("/mark-all-read", h.markAllRead)
	r.Patch("/{notificationID}/read", h.markRead)
	r.Delete("/{notificationID}", h.deleteNotification)
	r.Group(func(admin chi.Router) {
		admin.Use(requireAdmin)
		admin.Get("/admin", h.listAdminNotifications)
		admin.Get("/admin-metrics", h.adminMetrics)
		admin.Post("/system", h.sendSystemNotification)
	})
}

func (h *NotificationHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.notifications == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *NotificationHandlers) listUserNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	params, err := pagination.FromRequest(r, notificationListOptions)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	sortOrder := "asc"
	if params.Desc {
		sortOrder = "desc"
	}
	page, err := h.notifications.GetUserNotifications(ctx, services.UserNotificationQuery{
		UserID: identity.UID,
		IsRead: parseBoolParam(r.URL.Query().Get("_isRead")),
		Sort:   sortOrder,
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, newPagePayload(page, services.NewNotificationMessage))
}

func (h *NotificationHandlers) listAdminNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	params, err := pagination.FromRequest(r, notificationListOptions)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}
	query := r.URL.Query()

	page, err := h.notifications.GetAdminNotifications(ctx, services.AdminNotificationQuery{
		Type:   strings.TrimSpace(query.Get("_type")),
		IsRead: parseBoolParam(query.Get("_isRead")),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, newPagePayload(page, services.NewNotificationMessage))
}

func (h *NotificationHandlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	count, err := h.notifications.GetUnreadCount(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, countPayload{Count: count})
}

func (h *NotificationHandlers) newEntitiesCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var since *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "since must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		since = &ts
	}

	counts, err := h.notifications.GetNewEntitiesCount(ctx, actorFromIdentity(identity), since)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, newEntitiesCountPayload{
		NewInvoices: counts.NewInvoices,
		NewReviews:  counts.NewReviews,
	})
}

func (h *NotificationHandlers) adminMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	metrics, err := h.notifications.GetAdminMetrics(ctx, r.URL.Query().Get("timeframe"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildAdminMetricsPayload(metrics))
}

func (h *NotificationHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	count, err := h.notifications.MarkAllAsRead(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, countPayload{Count: count})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(w, r)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAsRead(ctx, notificationID, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, services.NewNotificationMessage(n))
}

func (h *NotificationHandlers) deleteNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(w, r)
	if !ok {
		return
	}
	if err := h.notifications.DeleteNotification(ctx, notificationID, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, map[string]string{"id": notificationID})
}

func (h *NotificationHandlers) sendSystemNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req systemNotificationRequest
	if err := decodeJSONBody(r, maxJSONBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	count, err := h.notifications.SendSystemNotification(ctx, services.SystemNotificationCommand{
		UserIDs:  req.UserIDs,
		AdminIDs: req.AdminIDs,
		SenderID: identity.UID,
		Message:  req.Message,
		Data:     req.Data,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, countPayload{Count: count})
}

func notificationIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return "", false
	}
	return notificationID, true
}

func buildAdminMetricsPayload(metrics services.AdminMetrics) adminMetricsPayload {
	statuses := make(map[string]int, len(metrics.InvoiceStatuses))
	for status, count := range metrics.InvoiceStatuses {
		statuses[string(status)] = count
	}
	ratings := make(map[string]int, len(metrics.ReviewRatings))
	for rating, count := range metrics.ReviewRatings {
		ratings[strconv.Itoa(rating)] = count
	}
	return adminMetricsPayload{
		Timeframe:        metrics.Timeframe,
		TotalNewInvoices: metrics.TotalNewInvoices,
		TotalNewReviews:  metrics.TotalNewReviews,
		InvoiceStatuses:  statuses,
		ReviewRatings:    ratings,
		AverageRating:    metrics.AverageRating,
	}
}
