package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice. Values are wire-visible.
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusConfirmed     InvoiceStatus = "CONFIRMED"
	InvoiceStatusRequestCancel InvoiceStatus = "REQUEST_CANCEL"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
	InvoiceStatusOnPreparing   InvoiceStatus = "ON_PREPARING"
	InvoiceStatusOnDelivering  InvoiceStatus = "ON_DELIVERING"
	InvoiceStatusDelivered     InvoiceStatus = "DELIVERED"
)

// InvoiceStatuses lists every status in lifecycle order.
var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusConfirmed,
	InvoiceStatusRequestCancel,
	InvoiceStatusCancelled,
	InvoiceStatusOnPreparing,
	InvoiceStatusOnDelivering,
	InvoiceStatusDelivered,
}

// Valid reports whether s is one of the known statuses.
func (s InvoiceStatus) Valid() bool {
	return slices.Contains(InvoiceStatuses, s)
}

// Terminal reports whether no transition leaves s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusDelivered || s == InvoiceStatusCancelled
}

// PaymentMethod identifies how an invoice is settled.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodVNPay PaymentMethod = "VNPAY"
)

// Invoice is one customer order. UserID and AppliedVoucher never change after creation.
type Invoice struct {
	ID             string
	UserID         string
	ContactName    string
	ContactPhone   string
	Shipping       Address
	Note           string
	PaymentMethod  PaymentMethod
	Status         InvoiceStatus
	Products       []InvoiceLine
	Total          decimal.Decimal
	AppliedVoucher *AppliedVoucher
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Units returns the number of items across all lines.
func (i Invoice) Units() int {
	total := 0
	for _, line := range i.Products {
		total += line.Quantity
	}
	return total
}

// Code is the short human-facing reference used in messages.
func (i Invoice) Code() string {
	if len(i.ID) <= 6 {
		return i.ID
	}
	return i.ID[len(i.ID)-6:]
}

// InvoiceLine captures a product as it was priced at purchase time.
type InvoiceLine struct {
	ProductID string
	Name      string
	Image     string
	Price     decimal.Decimal
	Size      string
	Color     string
	Quantity  int
	SubTotal  decimal.Decimal
	Promotion *LinePromotion
}

// LinePromotion snapshots the promotion applied to a line.
type LinePromotion struct {
	PromotionID        string
	Name               string
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
}
