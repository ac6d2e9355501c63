package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"leadintake/models"

	"github.com/go-redis/redis/v8"
)

const tokenKeyPrefix = "form_token:"

// consumeScript flips the consumed flag only if the token exists, is unconsumed
// and unexpired. Redis runs scripts atomically, which makes this the
// check-and-set for concurrent submissions.
//
// Returns 1 on success, 0 if missing, 2 if already consumed, 3 if expired.
var consumeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('HGET', KEYS[1], 'consumed') == '1' then
	return 2
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) < tonumber(ARGV[1]) then
	return 3
end
redis.call('HSET', KEYS[1], 'consumed', '1', 'consumed_at', ARGV[1])
return 1
`)

var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'phone', ARGV[1], 'issued_at', ARGV[2], 'expires_at', ARGV[3], 'consumed', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisTokenStore keeps tokens as hashes. Keys outlive the token TTL by the
// retention window so replays are still recognised as consumed.
type RedisTokenStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

func NewRedisTokenStore(client redis.UniversalClient, retention time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, retention: retention}
}

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisTokenStore) Save(ctx context.Context, t *models.FormToken) error {
	ttl := time.Until(t.ExpiresAt) + s.retention
	if ttl < time.Minute {
		ttl = time.Minute
	}
	created, err := saveScript.Run(ctx, s.client, []string{tokenKeyPrefix + t.Token},
		t.PhoneNumber,
		t.IssuedAt.UnixMilli(),
		t.ExpiresAt.UnixMilli(),
		boolFlag(t.Consumed),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("save form token: %w", err)
	}
	if created == 0 {
		return ErrConflict
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, token string) (*models.FormToken, error) {
	fields, err := s.client.HGetAll(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("load form token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeToken(token, fields)
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string, at time.Time) (*models.FormToken, error) {
	code, err := consumeScript.Run(ctx, s.client, []string{tokenKeyPrefix + token}, at.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("consume form token: %w", err)
	}
	switch code {
	case 0:
		return nil, ErrNotFound
	case 2:
		return nil, ErrTokenConsumed
	case 3:
		return nil, ErrTokenExpired
	}
	return s.Get(ctx, token)
}

func decodeToken(token string, fields map[string]string) (*models.FormToken, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode form token: issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode form token: expires_at: %w", err)
	}
	t := &models.FormToken{
		Token:       token,
		PhoneNumber: fields["phone"],
		IssuedAt:    time.UnixMilli(issued).UTC(),
		ExpiresAt:   time.UnixMilli(expires).UTC(),
		Consumed:    fields["consumed"] == "1",
	}
	if raw, ok := fields["consumed_at"]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode form token: consumed_at: %w", err)
		}
		at := time.UnixMilli(ms).UTC()
		t.ConsumedAt = &at
	}
	return t, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
