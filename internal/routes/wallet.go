package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/wallet"
)

// RegisterWalletRoutes wires the account holder dashboard.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/dashboard", h.Dashboard)
}
