package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/ratelimit"
)

// RateLimit gates a route group per caller. Requests without a user are
// keyed by client IP; internal callers are never limited.
func RateLimit(limiter ratelimit.Limiter, group string, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := GetCaller(c)
		if caller.IsInternal() {
			return c.Next()
		}
		key := c.IP()
		if caller.UserID != uuid.Nil {
			key = caller.UserID.String()
		}

		ok, err := limiter.Allow(c.UserContext(), key+":"+group)
		if err != nil || ok {
			return c.Next()
		}
		m.RateLimited(group)
		return domain.ErrRateLimited
	}
}
