package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/payments"
)

// RegisterPaymentRoutes wires the public submission endpoint.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/submit", h.Submit)
}

// RegisterAdminRoutes wires the authenticated admin endpoints.
func RegisterAdminRoutes(r fiber.Router, h *payments.Handler) {
	r.Get("/submissions", h.Submissions)
	r.Get("/transfers", h.Transfers)
	r.Get("/balances", h.Balances)
	r.Get("/replenishments", h.Replenishments)
	r.Post("/verify", h.Verify)
	r.Post("/reject", h.Reject)
	r.Post("/issuer/seed", h.SeedIssuer)
}
