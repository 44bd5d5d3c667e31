package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shortspace/shortspace/internal/app/ratelimit"
	"go.uber.org/zap"
)

// RateLimit guards a route group with the windowed limiter, keyed by client
// IP. The creation service applies its own per-action limit on top of this
// coarse guard.
func RateLimit(limiter *ratelimit.Limiter, action string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		allowed, err := limiter.Allow(ctx, c.IP(), action)
		if err != nil {
			// Fail open: losing rate-limit slots beats refusing traffic.
			logger.Warn("rate limit check failed", zap.Error(err))
			return c.Next()
		}

		if remaining, err := limiter.Remaining(ctx, c.IP(), action); err == nil {
			c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		c.Set("X-RateLimit-Reset",
			strconv.FormatInt(time.Now().Truncate(limiter.Window()).Add(limiter.Window()).Unix(), 10))

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
