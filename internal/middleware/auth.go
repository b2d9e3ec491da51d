package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/escrow_engine/internal/apierror"
	"github.com/congo-pay/escrow_engine/internal/auth"
	"github.com/congo-pay/escrow_engine/internal/domain"
)

// AccountOpener opens the caller's account the first time a token is seen.
type AccountOpener interface {
	EnsureAccount(ctx context.Context, id string, role domain.Role) (domain.Account, error)
}

// JWTAuth verifies the bearer token and resolves it to a Principal. The
// account behind the token is opened on first use; an account already known
// under a different role is refused.
func JWTAuth(secret string, accounts AccountOpener) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return apierror.ErrMissingToken
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		if tokenStr == "" {
			return apierror.ErrMissingToken
		}

		p, err := auth.Parse(tokenStr, secret)
		if err != nil {
			return apierror.ErrInvalidToken
		}

		if _, err := accounts.EnsureAccount(c.UserContext(), p.AccountID, p.Role); err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return apierror.ErrInvalidToken
			}
			return err
		}

		auth.SetPrincipal(c, p)
		return c.Next()
	}
}

// RequireRole refuses callers whose token carries another role.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := auth.PrincipalFrom(c)
		if !ok {
			return apierror.ErrMissingToken
		}
		if p.Role != role {
			return apierror.ErrForbidden
		}
		return c.Next()
	}
}
