package services

import (
	"maps"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
)

// NotificationMessage is the wire form of a notification, shared by the realtime channel and the
// HTTP listings.
type NotificationMessage struct {
	ID          string              `json:"id,omitempty"`
	Recipient   string              `json:"recipient,omitempty"`
	Sender      string              `json:"sender,omitempty"`
	Type        string              `json:"type"`
	Message     string              `json:"message,omitempty"`
	Data        map[string]any      `json:"data,omitempty"`
	InvoiceInfo *InvoiceInfoMessage `json:"invoice_info,omitempty"`
	ReviewInfo  *ReviewInfoMessage  `json:"review_info,omitempty"`
	VoucherInfo *VoucherInfoMessage `json:"voucher_info,omitempty"`
	IsRead      bool                `json:"isRead"`
	ReadAt      *time.Time          `json:"readAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// InvoiceInfoMessage is the wire form of an invoice notice.
type InvoiceInfoMessage struct {
	Label        string  `json:"label"`
	Message      string  `json:"message"`
	InvoiceID    string  `json:"invoice_id"`
	InvoiceCode  string  `json:"invoice_code"`
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Amount       float64 `json:"amount"`
	Unit         int     `json:"unit"`
	Status       string  `json:"status"`
}

// ReviewInfoMessage is the wire form of a review notice.
type ReviewInfoMessage struct {
	Label        string `json:"label"`
	Message      string `json:"message"`
	ReviewID     string `json:"review_id"`
	Rating       int    `json:"rating"`
	Content      string `json:"content"`
	UserID       string `json:"user_id"`
	CustomerName string `json:"customer_name"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
	InvoiceCode  string `json:"invoice_code"`
}

// VoucherInfoMessage is the wire form of a voucher notice.
type VoucherInfoMessage struct {
	Label        string    `json:"label"`
	Code         string    `json:"code"`
	DiscountRate float64   `json:"discount_rate"`
	Description  string    `json:"description"`
	Unit         int       `json:"unit"`
	DueAt        time.Time `json:"due_at"`
}

// NewNotificationMessage converts a notification to its wire form.
func NewNotificationMessage(n domain.Notification) NotificationMessage {
	msg := NotificationMessage{
		ID:        n.ID,
		Recipient: n.RecipientID,
		Sender:    n.SenderID,
		Type:      string(n.Type),
		Message:   n.Message,
		Data:      maps.Clone(n.Data),
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if info := n.Invoice; info != nil {
		msg.InvoiceInfo = &InvoiceInfoMessage{
			Label:        info.Label,
			Message:      info.Message,
			InvoiceID:    info.InvoiceID,
			InvoiceCode:  info.InvoiceCode,
			CustomerID:   info.CustomerID,
			CustomerName: info.CustomerName,
			Amount:       info.Amount.InexactFloat64(),
			Unit:         info.Unit,
			Status:       string(info.Status),
		}
	}
	if info := n.Review; info != nil {
		msg.ReviewInfo = &ReviewInfoMessage{
			Label:        info.Label,
			Message:      info.Message,
			ReviewID:     info.ReviewID,
			Rating:       info.Rating,
			Content:      info.Content,
			UserID:       info.UserID,
			CustomerName: info.CustomerName,
			ProductID:    info.ProductID,
			ProductName:  info.ProductName,
			ProductImage: info.ProductImage,
			InvoiceCode:  info.InvoiceCode,
		}
	}
	if info := n.Voucher; info != nil {
		msg.VoucherInfo = &VoucherInfoMessage{
			Label:        info.Label,
			Code:         info.Code,
			DiscountRate: info.DiscountRate.InexactFloat64(),
			Description:  info.Description,
			Unit:         info.Unit,
			DueAt:        info.DueAt,
		}
	}
	return msg
}
