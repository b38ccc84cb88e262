package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/service/auth"
)

const (
	CallerContextKey = "caller"

	InternalSecretHeader = "X-Internal-Secret"
)

// AuthRequired resolves the bearer token to a user caller.
func AuthRequired(authService auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return domain.Unauthorized("missing authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return domain.Unauthorized("invalid authorization header format")
		}

		user, err := authService.CurrentUser(c.UserContext(), parts[1])
		if err != nil {
			return domain.Unauthorized("invalid or expired token")
		}

		c.Locals(CallerContextKey, domain.UserCaller(user.ID))
		return c.Next()
	}
}

// InternalOnly admits requests carrying the shared internal secret. An empty
// configured secret rejects everything.
func InternalOnly(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		given := c.Get(InternalSecretHeader)
		if secret == "" || given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			return domain.Unauthorized("invalid internal secret")
		}
		c.Locals(CallerContextKey, domain.InternalCaller())
		return c.Next()
	}
}

func GetCurrentUserID(c *fiber.Ctx) uuid.UUID {
	return GetCaller(c).UserID
}

// GetCaller returns the caller set by AuthRequired or InternalOnly, or the
// zero Caller when neither ran.
func GetCaller(c *fiber.Ctx) domain.Caller {
	caller, _ := c.Locals(CallerContextKey).(domain.Caller)
	return caller
}
