package handoff

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"travel-marketplace/database/dbtest"
	model "travel-marketplace/internal/domain/handoff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDBStore_RedeemOnce(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	clk := newClock()
	s := NewDBStore(db, 10*time.Minute, WithClock(clk.Now))

	id, expiresAt, err := s.Create(ctx, 42, "access-tok", "refresh-tok", "ord-1")
	require.NoError(t, err)
	assert.Len(t, id, 43)
	assert.Equal(t, clk.Now().Add(10*time.Minute), expiresAt)

	got, err := s.Redeem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Redemption{UserID: 42, AccessToken: "access-tok", RefreshToken: "refresh-tok", OrderID: "ord-1"}, got)

	_, err = s.Redeem(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	var rec model.SessionHandoff
	require.NoError(t, db.Where("handoff_id = ?", id).Take(&rec).Error)
	assert.True(t, rec.Consumed)
	assert.NotNil(t, rec.ConsumedAt)
	assert.Empty(t, rec.AccessToken, "tokens are blanked once released")
	assert.Empty(t, rec.RefreshToken)
}

func TestDBStore_UnknownID(t *testing.T) {
	s := NewDBStore(dbtest.New(t), time.Minute)

	_, err := s.Redeem(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Redeem(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Binding(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBStore_Expired(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s := NewDBStore(dbtest.New(t), 10*time.Minute, WithClock(clk.Now))

	id, _, err := s.Create(ctx, 1, "a", "r", "ord-exp")
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)
	_, err = s.Redeem(ctx, id)
	assert.ErrorIs(t, err, ErrExpired)

	b, err := s.Binding(ctx, id)
	require.NoError(t, err)
	assert.False(t, b.Consumed)
	assert.True(t, b.Expired(clk.Now()))
	assert.Equal(t, "ord-exp", b.OrderID)
}

func TestDBStore_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	s := NewDBStore(dbtest.New(t), 10*time.Minute)

	id, _, err := s.Create(ctx, 5, "a", "r", "ord-race")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		success atomic.Int64
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.Redeem(ctx, id)
			if err == nil {
				assert.Equal(t, "a", r.AccessToken)
				success.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrNotFound)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), success.Load())
}

func TestDBStore_BindingAndPurge(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s := NewDBStore(dbtest.New(t), 10*time.Minute, WithClock(clk.Now))

	oldID, _, err := s.Create(ctx, 1, "a", "r", "ord-old")
	require.NoError(t, err)
	_, err = s.Redeem(ctx, oldID)
	require.NoError(t, err)

	b, err := s.Binding(ctx, oldID)
	require.NoError(t, err)
	assert.True(t, b.Consumed)
	assert.Equal(t, uint(1), b.UserID)

	clk.Advance(2 * time.Hour)
	freshID, _, err := s.Create(ctx, 2, "a", "r", "ord-new")
	require.NoError(t, err)

	n, err := s.PurgeExpired(ctx, clk.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Binding(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Binding(ctx, freshID)
	assert.NoError(t, err)
}
