package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

const (
	notificationIDPrefix = "ntf_"

	notificationLabelNewInvoice = "new order created"
	notificationLabelNewReview  = "new review created"
	notificationLabelVoucher    = "voucher issued"

	maxNotificationListLimit = 100
	maxNotificationMessage   = 2000
	newEntitiesWindow        = 24 * time.Hour

	defaultNotificationLocale = "vi"
)

// Admin metrics timeframes.
const (
	MetricsTimeframeDay   = "day"
	MetricsTimeframeWeek  = "week"
	MetricsTimeframeMonth = "month"
	MetricsTimeframeAll   = "all"
)

var (
	// ErrNotificationInvalidInput signals the caller provided invalid data.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationNotFound indicates the notification does not exist or belongs to someone else.
	ErrNotificationNotFound = errors.New("notification: not found")
)

// NotificationServiceDeps bundles collaborators required to construct the notification service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Invoices      repositories.InvoiceRepository
	Reviews       repositories.ReviewRepository
	Products      repositories.ProductRepository
	Realtime      RealtimeChannel
	Customers     CustomerDirectory
	Locale        string
	Clock         func() time.Time
	IDGenerator   func() string
	Meter         metric.Meter
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	invoices      repositories.InvoiceRepository
	reviews       repositories.ReviewRepository
	products      repositories.ProductRepository
	realtime      RealtimeChannel
	customers     CustomerDirectory
	printer       *message.Printer
	sanitizer     *bluemonday.Policy
	clock         func() time.Time
	newID         func() string
	deliveries    metric.Int64Counter
	logger        func(context.Context, string, map[string]any)
}

// NewNotificationService wires dependencies into a concrete NotificationService implementation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	if deps.Invoices == nil {
		return nil, errors.New("notification service: invoice repository is required")
	}
	if deps.Reviews == nil {
		return nil, errors.New("notification service: review repository is required")
	}

	locale := strings.TrimSpace(deps.Locale)
	if locale == "" {
		locale = defaultNotificationLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("notification service: invalid locale %q: %w", locale, err)
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
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(servicesMetricNamespace)
	}
	deliveries, err := meter.Int64Counter("notification.realtime.deliveries",
		metric.WithDescription("Realtime notification pushes by channel and outcome"))
	if err != nil {
		return nil, fmt.Errorf("notification service: create counter: %w", err)
	}

	return &notificationService{
		notifications: deps.Notifications,
		invoices:      deps.Invoices,
		reviews:       deps.Reviews,
		products:      deps.Products,
		realtime:      deps.Realtime,
		customers:     deps.Customers,
		printer:       message.NewPrinter(tag),
		sanitizer:     bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		deliveries: deliveries,
		logger:     logger,
	}, nil
}

// NotifyNewInvoice stores an INVOICE notification for the buyer plus an admin copy, then pushes both.
func (s *notificationService) NotifyNewInvoice(ctx context.Context, invoice Invoice) DeliveryReport {
	customerName := s.customerName(ctx, invoice.UserID, invoice.ContactName)
	notice := &domain.InvoiceNotice{
		Label: notificationLabelNewInvoice,
		Message: s.printer.Sprintf("Order #%s from %s: %d item(s), total %d",
			invoice.Code(), customerName, invoice.Units(), invoice.Total.Round(0).IntPart()),
		InvoiceID:    invoice.ID,
		InvoiceCode:  invoice.Code(),
		CustomerID:   invoice.UserID,
		CustomerName: customerName,
		Amount:       invoice.Total,
		Unit:         len(invoice.Products),
		Status:       domain.InvoiceStatusPending,
	}

	now := s.clock()
	buyer := domain.Notification{
		ID:          s.nextID(),
		RecipientID: invoice.UserID,
		Type:        domain.NotificationTypeInvoice,
		Message:     notice.Message,
		Invoice:     notice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	admin := buyer
	admin.ID = s.nextID()
	admin.RecipientID = ""

	return s.deliver(ctx, "invoice", buyer, &admin)
}

// NotifyInvoiceStatusChange stores an ACTIVITY notification for the buyer and pushes it.
func (s *notificationService) NotifyInvoiceStatusChange(ctx context.Context, invoice Invoice, previous InvoiceStatus) DeliveryReport {
	now := s.clock()
	n := domain.Notification{
		ID:          s.nextID(),
		RecipientID: invoice.UserID,
		Type:        domain.NotificationTypeActivity,
		Message:     statusChangeMessage(invoice.Code(), invoice.Status),
		Data: map[string]any{
			"invoiceId":      invoice.ID,
			"previousStatus": string(previous),
			"currentStatus":  string(invoice.Status),
			"updatedAt":      invoice.UpdatedAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.deliver(ctx, "invoice_status", n, nil)
}

// NotifyNewReview stores a REVIEW notification for the reviewer plus an admin copy, then pushes both.
func (s *notificationService) NotifyNewReview(ctx context.Context, review Review) DeliveryReport {
	var productName, productImage string
	if s.products != nil {
		product, err := s.products.FindByID(ctx, review.ProductID)
		if err != nil {
			s.logger(ctx, "notification.product.lookup.failed", map[string]any{
				"productId": review.ProductID,
				"error":     err.Error(),
			})
		} else {
			productName, productImage = product.Name, product.PrimaryImage()
		}
	}

	content := plainText(s.sanitizer, review.Content)
	notice := &domain.ReviewNotice{
		Label:        notificationLabelNewReview,
		Message:      content,
		ReviewID:     review.ID,
		Rating:       review.Rating,
		Content:      content,
		UserID:       review.UserID,
		CustomerName: s.customerName(ctx, review.UserID, ""),
		ProductID:    review.ProductID,
		ProductName:  productName,
		ProductImage: productImage,
		InvoiceCode:  review.InvoiceID,
	}

	now := s.clock()
	reviewer := domain.Notification{
		ID:          s.nextID(),
		RecipientID: review.UserID,
		Type:        domain.NotificationTypeReview,
		Message:     fmt.Sprintf("%d-star review for %s", review.Rating, productName),
		Review:      notice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	admin := reviewer
	admin.ID = s.nextID()
	admin.RecipientID = ""

	return s.deliver(ctx, "review", reviewer, &admin)
}

// NotifyVoucherIssued stores a VOUCHER notification for the voucher owner and pushes it.
func (s *notificationService) NotifyVoucherIssued(ctx context.Context, voucher Voucher) DeliveryReport {
	now := s.clock()
	n := domain.Notification{
		ID:          s.nextID(),
		RecipientID: voucher.UserID,
		Type:        domain.NotificationTypeVoucher,
		Message:     fmt.Sprintf("You received voucher %s", voucher.Code),
		Voucher: &domain.VoucherNotice{
			Label:        notificationLabelVoucher,
			Code:         voucher.Code,
			DiscountRate: voucher.Value,
			Description:  voucher.Description,
			Unit:         voucher.Count - voucher.UsedCount,
			DueAt:        voucher.EndDate,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.deliver(ctx, "voucher", n, nil)
}

func (s *notificationService) SendSystemNotification(ctx context.Context, cmd SystemNotificationCommand) (int, error) {
	msg := plainText(s.sanitizer, cmd.Message)
	if msg == "" {
		return 0, fmt.Errorf("%w: message is required", ErrNotificationInvalidInput)
	}
	if len(msg) > maxNotificationMessage {
		return 0, fmt.Errorf("%w: message exceeds %d characters", ErrNotificationInvalidInput, maxNotificationMessage)
	}

	admins := uniqueIDs(cmd.AdminIDs, nil)
	users := uniqueIDs(cmd.UserIDs, admins)
	if len(users)+len(admins) == 0 {
		return 0, fmt.Errorf("%w: at least one recipient is required", ErrNotificationInvalidInput)
	}

	now := s.clock()
	count := 0
	for _, recipient := range slices.Concat(admins, users) {
		n := domain.Notification{
			ID:          s.nextID(),
			RecipientID: recipient,
			SenderID:    strings.TrimSpace(cmd.SenderID),
			Type:        domain.NotificationTypeSystem,
			Message:     msg,
			Data:        cmd.Data,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.notifications.Insert(ctx, n); err != nil {
			return count, fmt.Errorf("notification: persist system notification: %w", err)
		}
		count++
	}

	if s.realtime == nil {
		return count, nil
	}
	payload := NotificationMessage{
		Type:      string(domain.NotificationTypeSystem),
		Message:   msg,
		Data:      cmd.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, adminID := range admins {
		if s.realtime.IsAdminOnline(adminID) {
			s.record(ctx, "admin", s.realtime.SendToAdmin(adminID, payload))
		}
	}
	if len(users) > 0 {
		s.record(ctx, "user", s.realtime.SendToUsers(users, payload))
	}
	return count, nil
}

func (s *notificationService) GetUserNotifications(ctx context.Context, query UserNotificationQuery) (domain.Page[Notification], error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return domain.Page[Notification]{}, fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	if err := validateNotificationPage(query.Page, query.Limit); err != nil {
		return domain.Page[Notification]{}, err
	}

	desc := true
	switch domain.SortOrder(strings.ToLower(strings.TrimSpace(query.Sort))) {
	case "", domain.SortDesc:
	case domain.SortAsc:
		desc = false
	default:
		return domain.Page[Notification]{}, fmt.Errorf("%w: sort must be asc or desc", ErrNotificationInvalidInput)
	}

	page, err := s.notifications.List(ctx, repositories.NotificationListFilter{
		RecipientID: userID,
		IsRead:      query.IsRead,
		Desc:        desc,
		Page:        query.Page,
		Limit:       query.Limit,
	})
	if err != nil {
		return domain.Page[Notification]{}, fmt.Errorf("notification: list: %w", err)
	}
	return page, nil
}

func (s *notificationService) GetAdminNotifications(ctx context.Context, query AdminNotificationQuery) (domain.Page[Notification], error) {
	if err := validateNotificationPage(query.Page, query.Limit); err != nil {
		return domain.Page[Notification]{}, err
	}

	filter := repositories.NotificationListFilter{
		IsRead: query.IsRead,
		Desc:   true,
		Page:   query.Page,
		Limit:  query.Limit,
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.Type)); raw != "" && raw != "ALL" {
		kind := NotificationType(raw)
		if !slices.Contains(domain.NotificationTypes, kind) {
			return domain.Page[Notification]{}, fmt.Errorf("%w: invalid notification type", ErrNotificationInvalidInput)
		}
		filter.Type = &kind
	}

	page, err := s.notifications.List(ctx, filter)
	if err != nil {
		return domain.Page[Notification]{}, fmt.Errorf("notification: list admin: %w", err)
	}
	return page, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, recipientID string) (Notification, error) {
	notificationID, recipientID, err := notificationKeys(notificationID, recipientID)
	if err != nil {
		return Notification{}, err
	}
	n, err := s.notifications.MarkRead(ctx, notificationID, recipientID, s.clock())
	if err != nil {
		return Notification{}, s.mapRepositoryError(err)
	}
	return n, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, recipientID string) (int, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}
	count, err := s.notifications.MarkAllRead(ctx, recipientID, s.clock())
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	return count, nil
}

func (s *notificationService) DeleteNotification(ctx context.Context, notificationID, recipientID string) error {
	notificationID, recipientID, err := notificationKeys(notificationID, recipientID)
	if err != nil {
		return err
	}
	if err := s.notifications.SoftDelete(ctx, notificationID, recipientID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, recipientID string) (int, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}
	count, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	return count, nil
}

// GetNewEntitiesCount counts invoices and reviews created since the cutoff, 24 hours ago by default.
// Admins see every invoice and review; other users see their own invoices only.
func (s *notificationService) GetNewEntitiesCount(ctx context.Context, actor Actor, since *time.Time) (NewEntitiesCount, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return NewEntitiesCount{}, fmt.Errorf("%w: user id is required", ErrNotificationInvalidInput)
	}
	cutoff := s.clock().Add(-newEntitiesWindow)
	if since != nil {
		cutoff = since.UTC()
	}

	if !actor.Admin {
		invoices, err := s.invoices.CountCreatedSince(ctx, actor.ID, cutoff)
		if err != nil {
			return NewEntitiesCount{}, fmt.Errorf("notification: count invoices: %w", err)
		}
		return NewEntitiesCount{NewInvoices: invoices}, nil
	}

	invoices, err := s.invoices.CountCreatedSince(ctx, "", cutoff)
	if err != nil {
		return NewEntitiesCount{}, fmt.Errorf("notification: count invoices: %w", err)
	}
	reviews, err := s.reviews.CountCreatedSince(ctx, cutoff)
	if err != nil {
		return NewEntitiesCount{}, fmt.Errorf("notification: count reviews: %w", err)
	}
	return NewEntitiesCount{NewInvoices: invoices, NewReviews: reviews}, nil
}

// GetAdminMetrics aggregates invoice statuses and review ratings over the timeframe. Unknown
// timeframes fall back to the last day.
func (s *notificationService) GetAdminMetrics(ctx context.Context, timeframe string) (AdminMetrics, error) {
	now := s.clock()
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	var since time.Time
	switch timeframe {
	case MetricsTimeframeWeek:
		since = now.AddDate(0, 0, -7)
	case MetricsTimeframeMonth:
		since = now.AddDate(0, 0, -30)
	case MetricsTimeframeAll:
		since = time.Unix(0, 0).UTC()
	default:
		timeframe = MetricsTimeframeDay
		since = now.Add(-24 * time.Hour)
	}

	statusCounts, err := s.invoices.StatusCountsSince(ctx, since)
	if err != nil {
		return AdminMetrics{}, fmt.Errorf("notification: invoice metrics: %w", err)
	}
	ratingCounts, err := s.reviews.RatingCountsSince(ctx, since)
	if err != nil {
		return AdminMetrics{}, fmt.Errorf("notification: review metrics: %w", err)
	}

	metrics := AdminMetrics{
		Timeframe:       timeframe,
		InvoiceStatuses: make(map[InvoiceStatus]int, len(domain.InvoiceStatuses)),
		ReviewRatings:   make(map[int]int, 5),
	}
	for _, status := range domain.InvoiceStatuses {
		metrics.InvoiceStatuses[status] = statusCounts[status]
		metrics.TotalNewInvoices += statusCounts[status]
	}
	weighted := 0
	for rating := 1; rating <= 5; rating++ {
		count := ratingCounts[rating]
		metrics.ReviewRatings[rating] = count
		metrics.TotalNewReviews += count
		weighted += rating * count
	}
	if metrics.TotalNewReviews > 0 {
		metrics.AverageRating = math.Round(float64(weighted)/float64(metrics.TotalNewReviews)*10) / 10
	}
	return metrics, nil
}

// deliver persists n (and the admin copy, when given) and pushes them. Failures are logged and
// reported, never returned.
func (s *notificationService) deliver(ctx context.Context, kind string, n domain.Notification, admin *domain.Notification) DeliveryReport {
	report := DeliveryReport{NotificationID: n.ID}
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.logger(ctx, "notification.persist.failed", map[string]any{
			"kind":      kind,
			"recipient": n.RecipientID,
			"error":     err.Error(),
		})
		report.Err = err
		return report
	}
	report.Persisted = true

	if admin != nil {
		if err := s.notifications.Insert(ctx, *admin); err != nil {
			s.logger(ctx, "notification.persist.failed", map[string]any{
				"kind":      kind,
				"recipient": "admins",
				"error":     err.Error(),
			})
		}
	}

	if s.realtime == nil {
		s.logger(ctx, "notification.deliver.skipped", map[string]any{"kind": kind, "reason": "realtime unavailable"})
		return report
	}
	if admin != nil {
		report.AdminBroadcast = s.realtime.BroadcastToAdmins(NewNotificationMessage(*admin))
		s.record(ctx, "admin", report.AdminBroadcast)
	}
	report.UserDelivered = s.realtime.SendToUser(n.RecipientID, NewNotificationMessage(n))
	s.record(ctx, "user", report.UserDelivered)
	return report
}

func (s *notificationService) record(ctx context.Context, channel string, delivered bool) {
	s.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("delivered", delivered),
	))
}

func (s *notificationService) customerName(ctx context.Context, userID, fallback string) string {
	if s.customers != nil && userID != "" {
		name, err := s.customers.DisplayName(ctx, userID)
		if err == nil && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
		if err != nil {
			s.logger(ctx, "notification.customer.lookup.failed", map[string]any{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return fallback
}

func (s *notificationService) nextID() string {
	return notificationIDPrefix + s.newID()
}

func (s *notificationService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotificationNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("notification: repository unavailable: %w", err)
		}
	}

	return err
}

func statusChangeMessage(code string, status InvoiceStatus) string {
	switch status {
	case domain.InvoiceStatusConfirmed:
		return fmt.Sprintf("Your order #%s has been confirmed.", code)
	case domain.InvoiceStatusOnPreparing:
		return fmt.Sprintf("Your order #%s is now being prepared.", code)
	case domain.InvoiceStatusOnDelivering:
		return fmt.Sprintf("Your order #%s has been shipped.", code)
	case domain.InvoiceStatusDelivered:
		return fmt.Sprintf("Your order #%s has been delivered. Enjoy your purchase!", code)
	case domain.InvoiceStatusRequestCancel:
		return fmt.Sprintf("Cancellation of your order #%s has been requested.", code)
	case domain.InvoiceStatusCancelled:
		return fmt.Sprintf("Your order #%s has been cancelled.", code)
	default:
		return fmt.Sprintf("Your order #%s status has been updated to %s.", code, status)
	}
}

func validateNotificationPage(page, limit int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be a positive number", ErrNotificationInvalidInput)
	}
	if limit < 1 || limit > maxNotificationListLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrNotificationInvalidInput, maxNotificationListLimit)
	}
	return nil
}

func notificationKeys(notificationID, recipientID string) (string, string, error) {
	notificationID = strings.TrimSpace(notificationID)
	recipientID = strings.TrimSpace(recipientID)
	if notificationID == "" {
		return "", "", fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	if recipientID == "" {
		return "", "", fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}
	return notificationID, recipientID, nil
}

// uniqueIDs trims and de-duplicates ids, dropping any already present in exclude.
func uniqueIDs(ids, exclude []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) || slices.Contains(exclude, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
