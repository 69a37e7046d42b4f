package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	domain "github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/domain"
	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/repositories"
)

// NotificationRepository is the in-memory repositories.NotificationRepository.
type NotificationRepository struct {
	store *Store
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.notifications[notification.ID]; exists {
		return conflict("notifications.insert", "notification %s already exists", notification.ID)
	}
	notification.Data = maps.Clone(notification.Data)
	r.store.notifications[notification.ID] = notification
	r.store.onRollback(ctx, func() { delete(r.store.notifications, notification.ID) })
	return nil
}

func (r *NotificationRepository) List(_ context.Context, filter repositories.NotificationListFilter) (domain.Page[domain.Notification], error) {
	r.store.mu.RLock()
	var matched []domain.Notification
	for _, n := range r.store.notifications {
		if n.IsDeleted || n.RecipientID != filter.RecipientID {
			continue
		}
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		matched = append(matched, n)
	}
	r.store.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Notification) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if filter.Desc {
			return -c
		}
		return c
	})
	return paginate(matched, filter.Page, filter.Limit), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, recipientID string, at time.Time) (domain.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notifications[notificationID]
	if !ok || n.IsDeleted || n.RecipientID != recipientID {
		return domain.Notification{}, notFound("notifications.mark_read", "notification %s not found", notificationID)
	}
	r.store.restoreNotificationOnRollback(ctx, n, at)
	if !n.IsRead {
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
	}
	n.UpdatedAt = at
	r.store.notifications[notificationID] = n
	return n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for id, n := range r.store.notifications {
		if n.RecipientID != recipientID || n.IsRead || n.IsDeleted {
			continue
		}
		r.store.restoreNotificationOnRollback(ctx, n, at)
		readAt := at
		n.IsRead = true
		n.ReadAt = &readAt
		n.UpdatedAt = at
		r.store.notifications[id] = n
		count++
	}
	return count, nil
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, notificationID, recipientID string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notifications[notificationID]
	if !ok || n.IsDeleted || n.RecipientID != recipientID {
		return notFound("notifications.delete", "notification %s not found", notificationID)
	}
	r.store.restoreNotificationOnRollback(ctx, n, at)
	n.IsDeleted = true
	n.UpdatedAt = at
	r.store.notifications[notificationID] = n
	return nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, recipientID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, n := range r.store.notifications {
		if n.RecipientID == recipientID && !n.IsRead && !n.IsDeleted {
			count++
		}
	}
	return count, nil
}

// restoreNotificationOnRollback puts previous back unless a later write replaced the one stamped at.
func (s *Store) restoreNotificationOnRollback(ctx context.Context, previous domain.Notification, at time.Time) {
	s.onRollback(ctx, func() {
		if current, ok := s.notifications[previous.ID]; ok && current.UpdatedAt.Equal(at) {
			s.notifications[previous.ID] = previous
		}
	})
}
