// Package handoff issues and redeems single-use session handoff ids.
//
// A handoff id is the only thing that travels through the payment
// provider's redirect. The credentials it refers to stay server-side and are
// released exactly once, to whoever redeems the id first.
package handoff

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrNotFound covers unknown and already consumed ids.
	ErrNotFound = errors.New("handoff: not found or already consumed")
	ErrExpired  = errors.New("handoff: expired")
)

// Redemption is what a successful Redeem hands back.
type Redemption struct {
	UserID       uint
	AccessToken  string
	RefreshToken string
	OrderID      string
}

// Binding is the token-free view of a record.
type Binding struct {
	HandoffID string
	UserID    uint
	OrderID   string
	Consumed  bool
	ExpiresAt time.Time
}

// Expired reports whether the binding's TTL has passed at now.
func (b Binding) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

type Store interface {
	Create(ctx context.Context, userID uint, accessToken, refreshToken, orderID string) (id string, expiresAt time.Time, err error)
	Redeem(ctx context.Context, handoffID string) (Redemption, error)
	Binding(ctx context.Context, handoffID string) (Binding, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func applyOptions(opts []Option) settings {
	s := settings{now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// NewID returns 32 random bytes, base64url encoded.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
