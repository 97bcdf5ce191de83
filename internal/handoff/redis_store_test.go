package handoff

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, clk *clock) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, 10*time.Minute, time.Hour, WithClock(clk.Now)), mr
}

func TestRedisStore_RedeemOnce(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s, mr := newRedisStore(t, clk)

	id, expiresAt, err := s.Create(ctx, 42, "access-tok", "refresh-tok", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(10*time.Minute), expiresAt)
	assert.Equal(t, 70*time.Minute, mr.TTL(redisKey(id)))

	got, err := s.Redeem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Redemption{UserID: 42, AccessToken: "access-tok", RefreshToken: "refresh-tok", OrderID: "ord-1"}, got)

	_, err = s.Redeem(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "", mr.HGet(redisKey(id), "access_token"))
	assert.Equal(t, "1", mr.HGet(redisKey(id), "consumed"))

	b, err := s.Binding(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Consumed)
	assert.Equal(t, "ord-1", b.OrderID)
	assert.Equal(t, expiresAt, b.ExpiresAt)
}

func TestRedisStore_ExpiredAndEvicted(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	s, mr := newRedisStore(t, clk)

	id, _, err := s.Create(ctx, 3, "a", "r", "ord-exp")
	require.NoError(t, err)

	clk.Advance(15 * time.Minute)
	_, err = s.Redeem(ctx, id)
	assert.ErrorIs(t, err, ErrExpired)

	mr.FastForward(71 * time.Minute)
	_, err = s.Redeem(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Binding(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.PurgeExpired(ctx, clk.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t, newClock())

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
			if _, err := s.Redeem(ctx, id); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), success.Load())
}
