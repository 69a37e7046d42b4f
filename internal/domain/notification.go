package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType classifies a notification. Values are wire-visible.
type NotificationType string

const (
	NotificationTypeSystem   NotificationType = "SYSTEM"
	NotificationTypeUser     NotificationType = "USER"
	NotificationTypeInvoice  NotificationType = "INVOICE"
	NotificationTypeReview   NotificationType = "REVIEW"
	NotificationTypeVoucher  NotificationType = "VOUCHER"
	NotificationTypeActivity NotificationType = "ACTIVITY"
)

// NotificationTypes lists every notification type.
var NotificationTypes = []NotificationType{
	NotificationTypeSystem,
	NotificationTypeUser,
	NotificationTypeInvoice,
	NotificationTypeReview,
	NotificationTypeVoucher,
	NotificationTypeActivity,
}

// Notification is a persisted fan-out record. An empty RecipientID addresses the admin broadcast
// channel. Notifications are soft-deleted only.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	Type        NotificationType
	Message     string
	Data        map[string]any
	Invoice     *InvoiceNotice
	Review      *ReviewNotice
	Voucher     *VoucherNotice
	IsRead      bool
	ReadAt      *time.Time
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InvoiceNotice is the invoice payload of an INVOICE notification.
type InvoiceNotice struct {
	Label        string
	Message      string
	InvoiceID    string
	InvoiceCode  string
	CustomerID   string
	CustomerName string
	Amount       decimal.Decimal
	Unit         int
	Status       InvoiceStatus
}

// ReviewNotice is the review payload of a REVIEW notification.
type ReviewNotice struct {
	Label        string
	Message      string
	ReviewID     string
	Rating       int
	Content      string
	UserID       string
	CustomerName string
	ProductID    string
	ProductName  string
	ProductImage string
	InvoiceCode  string
}

// VoucherNotice is the voucher payload of a VOUCHER notification.
type VoucherNotice struct {
	Label        string
	Code         string
	DiscountRate decimal.Decimal
	Description  string
	Unit         int
	DueAt        time.Time
}

// NewEntitiesCount summarises recently created invoices and reviews.
type NewEntitiesCount struct {
	NewInvoices int
	NewReviews  int
}

// AdminMetrics aggregates invoice and review activity over a timeframe.
type AdminMetrics struct {
	Timeframe        string
	TotalNewInvoices int
	TotalNewReviews  int
	InvoiceStatuses  map[InvoiceStatus]int
	ReviewRatings    map[int]int
	AverageRating    float64
}
