package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
)

const rateLimitPrefix = "rl:v1:"

// RateLimit caps requests per caller per minute using a Redis counter. The
// caller is the authenticated account, or the client IP before auth. Without
// Redis, or when Redis fails, requests pass.
func RateLimit(cache *redis.Client, name string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}

		caller := c.IP()
		if p, ok := auth.PrincipalFrom(c); ok {
			caller = p.AccountID
		}
		key := rateLimitPrefix + name + ":" + caller

		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.WarnContext(ctx, "rate limit counter unavailable", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return apierror.ErrRateLimited
		}
		return c.Next()
	}
}
