package handoff

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaRedeem: consume a handoff hash atomically.
// KEYS[1]=handoff key, ARGV[1]=now (unix ms).
// Returns {0} unknown/consumed, {-1} expired, {1, user_id, access, refresh, order_id} on success.
const luaRedeem = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
if redis.call('EXISTS', key) == 0 then
  return {0}
end
if redis.call('HGET', key, 'consumed') == '1' then
  return {0}
end
local exp = tonumber(redis.call('HGET', key, 'expires_at'))
if exp == nil or exp <= now then
  return {-1}
end
local v = redis.call('HMGET', key, 'user_id', 'access_token', 'refresh_token', 'order_id')
redis.call('HSET', key, 'consumed', '1', 'consumed_at', ARGV[1], 'access_token', '', 'refresh_token', '')
return {1, v[1], v[2], v[3], v[4]}
`

// RedisStore keeps handoff records as hashes. Keys outlive the TTL by the
// retention window so late redemptions report ErrExpired; Redis evicts them
// after that.
type RedisStore struct {
	rdb       *rd.Client
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewRedisStore(rdb *rd.Client, ttl, retention time.Duration, opts ...Option) *RedisStore {
	s := applyOptions(opts)
	return &RedisStore{rdb: rdb, ttl: ttl, retention: retention, now: s.now}
}

func redisKey(handoffID string) string {
	return "travel:handoff:" + handoffID
}

func (s *RedisStore) Create(ctx context.Context, userID uint, accessToken, refreshToken, orderID string) (string, time.Time, error) {
	id, err := NewID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate handoff id: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	key := redisKey(id)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", strconv.FormatUint(uint64(userID), 10),
		"access_token", accessToken,
		"refresh_token", refreshToken,
		"order_id", orderID,
		"created_at", strconv.FormatInt(now.UnixMilli(), 10),
		"expires_at", strconv.FormatInt(expiresAt.UnixMilli(), 10),
		"consumed", "0",
	)
	pipe.Expire(ctx, key, s.ttl+s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", time.Time{}, fmt.Errorf("store handoff: %w", err)
	}
	return id, expiresAt, nil
}

func (s *RedisStore) Redeem(ctx context.Context, handoffID string) (Redemption, error) {
	if handoffID == "" {
		return Redemption{}, ErrNotFound
	}

	now := strconv.FormatInt(s.now().UnixMilli(), 10)
	res, err := s.rdb.Eval(ctx, luaRedeem, []string{redisKey(handoffID)}, now).Slice()
	if err != nil {
		return Redemption{}, fmt.Errorf("redeem handoff: %w", err)
	}
	if len(res) == 0 {
		return Redemption{}, fmt.Errorf("redeem handoff: empty script reply")
	}

	code, ok := res[0].(int64)
	if !ok {
		return Redemption{}, fmt.Errorf("redeem handoff: unexpected reply %T", res[0])
	}
	switch code {
	case 0:
		return Redemption{}, ErrNotFound
	case -1:
		return Redemption{}, ErrExpired
	}
	if len(res) != 5 {
		return Redemption{}, fmt.Errorf("redeem handoff: malformed reply of %d items", len(res))
	}

	fields := make([]string, 4)
	for i := range fields {
		v, _ := res[i+1].(string)
		fields[i] = v
	}
	userID, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Redemption{}, fmt.Errorf("redeem handoff: invalid user_id %q", fields[0])
	}
	return Redemption{
		UserID:       uint(userID),
		AccessToken:  fields[1],
		RefreshToken: fields[2],
		OrderID:      fields[3],
	}, nil
}

func (s *RedisStore) Binding(ctx context.Context, handoffID string) (Binding, error) {
	if handoffID == "" {
		return Binding{}, ErrNotFound
	}
	m, err := s.rdb.HGetAll(ctx, redisKey(handoffID)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return Binding{}, ErrNotFound
		}
		return Binding{}, fmt.Errorf("load handoff: %w", err)
	}
	if len(m) == 0 {
		return Binding{}, ErrNotFound
	}

	userID, err := strconv.ParseUint(m["user_id"], 10, 64)
	if err != nil {
		return Binding{}, fmt.Errorf("load handoff: invalid user_id %q", m["user_id"])
	}
	expMs, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return Binding{}, fmt.Errorf("load handoff: invalid expires_at %q", m["expires_at"])
	}
	return Binding{
		HandoffID: handoffID,
		UserID:    uint(userID),
		OrderID:   m["order_id"],
		Consumed:  m["consumed"] == "1",
		ExpiresAt: time.UnixMilli(expMs).UTC(),
	}, nil
}

// PurgeExpired is a no-op: key expiry does the collection.
func (s *RedisStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
