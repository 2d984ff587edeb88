package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/auth"
)

// TokenParser resolves a dashboard token to its account.
type TokenParser interface {
	Parse(token string, scope auth.Scope) (string, error)
}

// Handler exposes the account holder dashboard.
type Handler struct {
	service *Service
	tokens  TokenParser
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service, tokens TokenParser) *Handler {
	return &Handler{service: service, tokens: tokens}
}

// Dashboard returns the balance and transfers of the account named by the
// dashboard token in the query string.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "missing token")
	}
	account, err := h.tokens.Parse(token, auth.ScopeDashboard)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid token")
	}
	view, err := h.service.View(c.UserContext(), account)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"email":     view.Account,
		"balance":   view.Balance,
		"transfers": view.Transfers,
	})
}
