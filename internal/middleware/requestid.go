package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/escrow_engine/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an identifier, echoes it back, and puts a
// logger carrying it on the request context.
func RequestID(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)

		scoped := logger.With(slog.String("request_id", reqID))
		c.SetUserContext(logging.WithLogger(c.UserContext(), scoped))
		return c.Next()
	}
}

// RequestIDFrom returns the identifier RequestID assigned.
func RequestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDHeader).(string)
	return id
}
