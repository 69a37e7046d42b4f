package memory

import (
	"context"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// ReviewRepository is the in-memory repositories.ReviewRepository.
type ReviewRepository struct {
	store *Store
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.reviews[review.ID]; exists {
		return conflict("reviews.insert", "review %s already exists", review.ID)
	}
	r.store.reviews[review.ID] = review
	r.store.onRollback(ctx, func() { delete(r.store.reviews, review.ID) })
	return nil
}

func (r *ReviewRepository) ExistsForInvoiceProduct(_ context.Context, invoiceID, productID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, review := range r.store.reviews {
		if review.InvoiceID == invoiceID && review.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *ReviewRepository) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	counts, _ := r.RatingCountsSince(context.Background(), since)
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

func (r *ReviewRepository) RatingCountsSince(_ context.Context, since time.Time) (map[int]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[int]int)
	for _, review := range r.store.reviews {
		if !review.CreatedAt.Before(since) {
			counts[review.Rating]++
		}
	}
	return counts, nil
}
