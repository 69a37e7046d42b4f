package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	pfirestore "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/firestore"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// ReviewRepository persists product reviews in Firestore.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

type reviewDocument struct {
	UserID    string    `firestore:"review_user"`
	ProductID string    `firestore:"review_product"`
	InvoiceID string    `firestore:"review_invoice"`
	Rating    int       `firestore:"review_rating"`
	Content   string    `firestore:"review_content"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	return r.base.Create(ctx, review.ID, reviewDocument{
		UserID:    review.UserID,
		ProductID: review.ProductID,
		InvoiceID: review.InvoiceID,
		Rating:    review.Rating,
		Content:   review.Content,
		CreatedAt: utc(review.CreatedAt),
	})
}

func (r *ReviewRepository) ExistsForInvoiceProduct(ctx context.Context, invoiceID, productID string) (bool, error) {
	n, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("review_invoice", "==", invoiceID).Where("review_product", "==", productID)
	})
	return n > 0, err
}

func (r *ReviewRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("createdAt", ">=", since.UTC())
	})
}

func (r *ReviewRepository) RatingCountsSince(ctx context.Context, since time.Time) (map[int]int, error) {
	counts := make(map[int]int, 5)
	for rating := 1; rating <= 5; rating++ {
		n, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("review_rating", "==", rating).Where("createdAt", ">=", since.UTC())
		})
		if err != nil {
			return nil, err
		}
		counts[rating] = n
	}
	return counts, nil
}
