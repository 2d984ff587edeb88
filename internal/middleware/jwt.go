package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/auth"
)

const adminLocal = "admin"

// TokenParser verifies a token for a scope and returns its subject.
type TokenParser interface {
	Parse(token string, scope auth.Scope) (string, error)
}

// AdminEnabled hides the admin surface entirely unless enabled.
func AdminEnabled(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled {
			return fiber.NewError(http.StatusNotFound, "admin functionality is disabled")
		}
		return c.Next()
	}
}

// AdminAuth requires a bearer token with the admin scope. The alias becomes
// the resolver identity of any action taken on the request.
func AdminAuth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		admin, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]), auth.ScopeAdmin)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(adminLocal, admin)
		return c.Next()
	}
}

// AdminFrom returns the admin alias set by AdminAuth.
func AdminFrom(c *fiber.Ctx) string {
	admin, _ := c.Locals(adminLocal).(string)
	return admin
}
