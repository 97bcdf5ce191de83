package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "travel-marketplace/internal/domain/handoff"

	"gorm.io/gorm"
)

// DBStore keeps handoff records in the session_handoffs table.
type DBStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewDBStore(db *gorm.DB, ttl time.Duration, opts ...Option) *DBStore {
	s := applyOptions(opts)
	return &DBStore{db: db, ttl: ttl, now: s.now}
}

func (s *DBStore) Create(ctx context.Context, userID uint, accessToken, refreshToken, orderID string) (string, time.Time, error) {
	id, err := NewID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate handoff id: %w", err)
	}

	now := s.now()
	rec := model.SessionHandoff{
		HandoffID:    id,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		OrderID:      orderID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("store handoff: %w", err)
	}
	return id, rec.ExpiresAt, nil
}

// Redeem flips consumed with a conditional update. Of two concurrent calls
// only one sees a row affected; the other gets ErrNotFound.
func (s *DBStore) Redeem(ctx context.Context, handoffID string) (Redemption, error) {
	if handoffID == "" {
		return Redemption{}, ErrNotFound
	}

	now := s.now()
	var out Redemption

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.SessionHandoff
		err := tx.Where("handoff_id = ?", handoffID).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load handoff: %w", err)
		}
		if rec.Consumed {
			return ErrNotFound
		}
		if !now.Before(rec.ExpiresAt) {
			return ErrExpired
		}

		res := tx.Model(&model.SessionHandoff{}).
			Where("handoff_id = ? AND consumed = ? AND expires_at > ?", handoffID, false, now).
			Updates(map[string]interface{}{
				"consumed":      true,
				"consumed_at":   now,
				"access_token":  "",
				"refresh_token": "",
			})
		if res.Error != nil {
			return fmt.Errorf("consume handoff: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		out = Redemption{
			UserID:       rec.UserID,
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			OrderID:      rec.OrderID,
		}
		return nil
	})
	if err != nil {
		return Redemption{}, err
	}
	return out, nil
}

func (s *DBStore) Binding(ctx context.Context, handoffID string) (Binding, error) {
	if handoffID == "" {
		return Binding{}, ErrNotFound
	}
	var rec model.SessionHandoff
	err := s.db.WithContext(ctx).
		Select("handoff_id", "user_id", "order_id", "consumed", "expires_at").
		Where("handoff_id = ?", handoffID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Binding{}, ErrNotFound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("load handoff: %w", err)
	}
	return Binding{
		HandoffID: rec.HandoffID,
		UserID:    rec.UserID,
		OrderID:   rec.OrderID,
		Consumed:  rec.Consumed,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// PurgeExpired deletes records that expired before the cutoff, consumed or not.
func (s *DBStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.SessionHandoff{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge handoffs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
