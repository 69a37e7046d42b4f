package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// Firestore caps a transaction at 500 writes.
const maxBatchWrites = 500

// NotificationRepository persists notifications in Firestore. Admin broadcast rows carry an empty
// recipient.
type NotificationRepository struct {
	base *pfirestore.BaseRepository[notificationDocument]
	uow  *pfirestore.UnitOfWork
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

type notificationDocument struct {
	RecipientID string                 `firestore:"recipient"`
	SenderID    string                 `firestore:"sender"`
	Type        string                 `firestore:"type"`
	Message     string                 `firestore:"message,omitempty"`
	Data        map[string]any         `firestore:"data,omitempty"`
	Invoice     *invoiceNoticeDocument `firestore:"invoice_info,omitempty"`
	Review      *reviewNoticeDocument  `firestore:"review_info,omitempty"`
	Voucher     *voucherNoticeDocument `firestore:"voucher_info,omitempty"`
	IsRead      bool                   `firestore:"isRead"`
	ReadAt      *time.Time             `firestore:"readAt"`
	IsDeleted   bool                   `firestore:"isDeleted"`
	CreatedAt   time.Time              `firestore:"createdAt"`
	UpdatedAt   time.Time              `firestore:"updatedAt"`
}

type invoiceNoticeDocument struct {
	Label        string  `firestore:"label"`
	Message      string  `firestore:"message"`
	InvoiceID    string  `firestore:"invoice_id"`
	InvoiceCode  string  `firestore:"invoice_code"`
	CustomerID   string  `firestore:"customer_id"`
	CustomerName string  `firestore:"customer_name"`
	Amount       float64 `firestore:"amount"`
	Unit         int     `firestore:"unit"`
	Status       string  `firestore:"status"`
}

type reviewNoticeDocument struct {
	Label        string `firestore:"label"`
	Message      string `firestore:"message"`
	ReviewID     string `firestore:"review_id"`
	Rating       int    `firestore:"rating"`
	Content      string `firestore:"content"`
	UserID       string `firestore:"user_id"`
	CustomerName string `firestore:"customer_name"`
	ProductID    string `firestore:"product_id"`
	ProductName  string `firestore:"product_name"`
	ProductImage string `firestore:"product_image"`
	InvoiceCode  string `firestore:"invoice_code"`
}

type voucherNoticeDocument struct {
	Label        string    `firestore:"label"`
	Code         string    `firestore:"code"`
	DiscountRate float64   `firestore:"discount_rate"`
	Description  string    `firestore:"description"`
	Unit         int       `firestore:"unit"`
	DueAt        time.Time `firestore:"dueAt"`
}

func (r *NotificationRepository) Insert(ctx context.Context, n domain.Notification) error {
	return r.base.Create(ctx, n.ID, newNotificationDocument(n))
}

func (r *NotificationRepository) List(ctx context.Context, filter repositories.NotificationListFilter) (domain.Page[domain.Notification], error) {
	where := func(q firestore.Query) firestore.Query {
		q = q.Where("recipient", "==", filter.RecipientID).Where("isDeleted", "==", false)
		if filter.Type != nil {
			q = q.Where("type", "==", string(*filter.Type))
		}
		if filter.IsRead != nil {
			q = q.Where("isRead", "==", *filter.IsRead)
		}
		return q
	}

	total, err := r.base.Count(ctx, where)
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}
	direction := firestore.Asc
	if filter.Desc {
		direction = firestore.Desc
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return where(q).OrderBy("createdAt", direction).Offset(offsetOf(filter.Page, filter.Limit)).Limit(filter.Limit)
	})
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}
	items := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	return newPage(items, total, filter.Page, filter.Limit), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, recipientID string, at time.Time) (domain.Notification, error) {
	var updated domain.Notification
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.owned(ctx, "notifications.mark_read", notificationID, recipientID)
		if err != nil {
			return err
		}
		data := doc.Data
		data.UpdatedAt = at.UTC()
		updates := []firestore.Update{{Path: "updatedAt", Value: data.UpdatedAt}}
		if !data.IsRead {
			readAt := at.UTC()
			data.IsRead = true
			data.ReadAt = &readAt
			updates = append(updates,
				firestore.Update{Path: "isRead", Value: true},
				firestore.Update{Path: "readAt", Value: readAt},
			)
		}
		if err := r.base.Update(ctx, notificationID, updates); err != nil {
			return err
		}
		updated = data.toDomain(notificationID)
		return nil
	})
	return updated, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	total := 0
	for {
		marked := 0
		err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
			docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
				return q.Where("recipient", "==", recipientID).
					Where("isRead", "==", false).
					Where("isDeleted", "==", false).
					Limit(maxBatchWrites)
			})
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if err := r.base.Update(ctx, doc.ID, []firestore.Update{
					{Path: "isRead", Value: true},
					{Path: "readAt", Value: at.UTC()},
					{Path: "updatedAt", Value: at.UTC()},
				}); err != nil {
					return err
				}
			}
			marked = len(docs)
			return nil
		})
		if err != nil {
			return total, err
		}
		total += marked
		if marked < maxBatchWrites {
			return total, nil
		}
	}
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, notificationID, recipientID string, at time.Time) error {
	return r.uow.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.owned(ctx, "notifications.delete", notificationID, recipientID); err != nil {
			return err
		}
		return r.base.Update(ctx, notificationID, []firestore.Update{
			{Path: "isDeleted", Value: true},
			{Path: "updatedAt", Value: at.UTC()},
		})
	})
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("recipient", "==", recipientID).Where("isRead", "==", false).Where("isDeleted", "==", false)
	})
}

// owned loads a live notification addressed to recipientID; anything else reads as not found.
func (r *NotificationRepository) owned(ctx context.Context, op, notificationID, recipientID string) (pfirestore.Document[notificationDocument], error) {
	doc, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return doc, err
	}
	if doc.Data.IsDeleted || doc.Data.RecipientID != recipientID {
		return doc, &notFoundError{msg: fmt.Sprintf("%s: notification %s not found", op, notificationID)}
	}
	return doc, nil
}

func newNotificationDocument(n domain.Notification) notificationDocument {
	doc := notificationDocument{
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Type:        string(n.Type),
		Message:     n.Message,
		Data:        n.Data,
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
		IsDeleted:   n.IsDeleted,
		CreatedAt:   utc(n.CreatedAt),
		UpdatedAt:   utc(n.UpdatedAt),
	}
	if v := n.Invoice; v != nil {
		doc.Invoice = &invoiceNoticeDocument{
			Label:        v.Label,
			Message:      v.Message,
			InvoiceID:    v.InvoiceID,
			InvoiceCode:  v.InvoiceCode,
			CustomerID:   v.CustomerID,
			CustomerName: v.CustomerName,
			Amount:       money(v.Amount),
			Unit:         v.Unit,
			Status:       string(v.Status),
		}
	}
	if v := n.Review; v != nil {
		doc.Review = &reviewNoticeDocument{
			Label:        v.Label,
			Message:      v.Message,
			ReviewID:     v.ReviewID,
			Rating:       v.Rating,
			Content:      v.Content,
			UserID:       v.UserID,
			CustomerName: v.CustomerName,
			ProductID:    v.ProductID,
			ProductName:  v.ProductName,
			ProductImage: v.ProductImage,
			InvoiceCode:  v.InvoiceCode,
		}
	}
	if v := n.Voucher; v != nil {
		doc.Voucher = &voucherNoticeDocument{
			Label:        v.Label,
			Code:         v.Code,
			DiscountRate: v.DiscountRate.InexactFloat64(),
			Description:  v.Description,
			Unit:         v.Unit,
			DueAt:        utc(v.DueAt),
		}
	}
	return doc
}

func (d notificationDocument) toDomain(id string) domain.Notification {
	n := domain.Notification{
		ID:          id,
		RecipientID: d.RecipientID,
		SenderID:    d.SenderID,
		Type:        domain.NotificationType(d.Type),
		Message:     d.Message,
		Data:        d.Data,
		IsRead:      d.IsRead,
		ReadAt:      d.ReadAt,
		IsDeleted:   d.IsDeleted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if v := d.Invoice; v != nil {
		n.Invoice = &domain.InvoiceNotice{
			Label:        v.Label,
			Message:      v.Message,
			InvoiceID:    v.InvoiceID,
			InvoiceCode:  v.InvoiceCode,
			CustomerID:   v.CustomerID,
			CustomerName: v.CustomerName,
			Amount:       fromMoney(v.Amount),
			Unit:         v.Unit,
			Status:       domain.InvoiceStatus(v.Status),
		}
	}
	if v := d.Review; v != nil {
		n.Review = &domain.ReviewNotice{
			Label:        v.Label,
			Message:      v.Message,
			ReviewID:     v.ReviewID,
			Rating:       v.Rating,
			Content:      v.Content,
			UserID:       v.UserID,
			CustomerName: v.CustomerName,
			ProductID:    v.ProductID,
			ProductName:  v.ProductName,
			ProductImage: v.ProductImage,
			InvoiceCode:  v.InvoiceCode,
		}
	}
	if v := d.Voucher; v != nil {
		n.Voucher = &domain.VoucherNotice{
			Label:        v.Label,
			Code:         v.Code,
			DiscountRate: fromMoney(v.DiscountRate),
			Description:  v.Description,
			Unit:         v.Unit,
			DueAt:        v.DueAt,
		}
	}
	return n
}
