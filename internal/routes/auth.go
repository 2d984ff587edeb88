package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/auth"
)

// RegisterAuthRoutes wires the admin login endpoint.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
		return
	}
	r.Post("/login", h.Login)
}
