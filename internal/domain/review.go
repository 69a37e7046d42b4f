package domain

import "time"

// Review is a customer rating of a delivered product.
type Review struct {
	ID        string
	UserID    string
	ProductID string
	InvoiceID string
	Rating    int
	Content   string
	CreatedAt time.Time
}
