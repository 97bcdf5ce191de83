package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-marketplace/internal/domain/orders"

	"gorm.io/gorm"
)

// Repository persists orders. Status changes only go through Transition.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, o *orders.Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (orders.Order, error) {
	var o orders.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return orders.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("load order %s: %w", id, err)
	}
	return o, nil
}

// Transition moves the order to target if its current status is one of
// orders.Sources(target). It reports whether this call made the change.
func (r *Repository) Transition(ctx context.Context, id string, target orders.Status, now time.Time, fields map[string]interface{}) (bool, error) {
	from := orders.Sources(target)
	if len(from) == 0 {
		return false, fmt.Errorf("no transition into %s", target)
	}

	updates := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&orders.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("move order %s to %s: %w", id, target, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uint, limit int) ([]orders.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []orders.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	return out, nil
}

// ListStale returns open orders whose window closed at or before now.
func (r *Repository) ListStale(ctx context.Context, now time.Time, limit int) ([]orders.Order, error) {
	var out []orders.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at <= ?",
			[]orders.Status{orders.StatusPending, orders.StatusAwaitingConfirmation}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	return out, nil
}
