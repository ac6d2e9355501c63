package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadintake/utils"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type IssueRateLimitConfig struct {
	Max                int
	Window             time.Duration
	DefaultCountryCode string
	// Storage holds the counters; nil keeps them in process memory.
	Storage fiber.Storage
}

// IssueRateLimiter caps how many form links can be requested for one phone
// number per window. Requests without a readable phone fall back to the
// client IP.
func IssueRateLimiter(cfg IssueRateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			var body struct {
				PhoneNumber string `json:"phoneNumber"`
			}
			if err := json.Unmarshal(c.Body(), &body); err == nil && body.PhoneNumber != "" {
				if phone, err := utils.NormalizePhone(body.PhoneNumber, cfg.DefaultCountryCode); err == nil {
					return "issue:" + phone
				}
				return "issue:" + body.PhoneNumber
			}
			return "issue-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("rate_limit_hit", map[string]interface{}{
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"service":    c.Locals("service"),
				"user_agent": c.Get(fiber.HeaderUserAgent),
			})
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":     false,
				"error":       "Too many form links requested for this phone number",
				"retry_after": cfg.Window.String(),
			})
		},
		Storage: cfg.Storage,
	})
}

const rateLimitKeyPrefix = "ratelimit:"

// RedisStorage implements fiber.Storage on a shared Redis client. Keys are
// namespaced so Reset never touches form tokens kept in the same database.
type RedisStorage struct {
	client redis.UniversalClient
}

func NewRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{client: client}
}

func (r *RedisStorage) Get(key string) ([]byte, error) {
	val, err := r.client.Get(context.Background(), rateLimitKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (r *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	return r.client.Set(context.Background(), rateLimitKeyPrefix+key, val, exp).Err()
}

func (r *RedisStorage) Delete(key string) error {
	return r.client.Del(context.Background(), rateLimitKeyPrefix+key).Err()
}

func (r *RedisStorage) Reset() error {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, rateLimitKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op: the client is owned by the caller.
func (r *RedisStorage) Close() error {
	return nil
}
