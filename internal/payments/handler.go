package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/middleware"
	"github.com/leeglobal/lee_ledger/internal/validation"
)

// Handler exposes the public submission endpoint and the admin endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Submit records a claim and verifies it automatically.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var claim Claim
	if err := c.BodyParser(&claim); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Submit(c.UserContext(), claim)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "insufficient system balance, contact support",
				"id":     res.SubmissionID,
				"status": res.Status,
			})
		}
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":            true,
		"id":            res.SubmissionID,
		"status":        res.Status,
		"transfer":      res.Transfer,
		"dashboardLink": res.DashboardLink,
		"emailQueued":   res.EmailQueued,
		"note":          res.Note,
	})
}

type idRequest struct {
	ID string `json:"id" validate:"required"`
}

// Verify credits a pending submission on behalf of the logged-in admin.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req idRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	transfer, err := h.service.VerifySubmission(c.UserContext(), req.ID, middleware.AdminFrom(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "transfer": transfer})
}

// Reject closes a pending submission.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req idRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	sub, err := h.service.RejectSubmission(c.UserContext(), req.ID, middleware.AdminFrom(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "submission": sub})
}

type seedRequest struct {
	Minimum string `json:"minimum" validate:"required,nonnegative_amount"`
}

// SeedIssuer raises the issuing account to the requested minimum.
func (h *Handler) SeedIssuer(c *fiber.Ctx) error {
	var req seedRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	r, err := h.service.SeedIssuer(c.UserContext(), req.Minimum, middleware.AdminFrom(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true, "seeded": r != nil, "replenishment": r})
}

// Submissions lists all submissions.
func (h *Handler) Submissions(c *fiber.Ctx) error {
	subs, err := h.service.Submissions(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"submissions": subs})
}

// Transfers lists the transfer log.
func (h *Handler) Transfers(c *fiber.Ctx) error {
	transfers, err := h.service.Transfers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transfers": transfers})
}

// Balances lists every account balance.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"balances": balances})
}

// Replenishments lists the issuer mint audit log.
func (h *Handler) Replenishments(c *fiber.Ctx) error {
	reps, err := h.service.Replenishments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"replenishments": reps})
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(out); err != nil {
		return err
	}
	return nil
}
