package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/domain"
)

const principalKey = "principal"

// Principal is the authenticated caller resolved at the API boundary.
type Principal struct {
	AccountID string
	Role      domain.Role
}

// SetPrincipal stores the caller on the request.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFrom returns the caller stored by the auth middleware.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok && p.AccountID != ""
}
