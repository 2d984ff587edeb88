package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/leeglobal/lee_ledger/internal/ledger"
)

// Status maps a ledger error to its HTTP status.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotPending), errors.Is(err, ledger.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From converts err into a *fiber.Error. Server errors get a generic message
// so internal details do not leak.
func From(err error) *fiber.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	status := Status(err)
	switch status {
	case http.StatusInternalServerError:
		return fiber.NewError(status, "internal server error")
	case http.StatusServiceUnavailable:
		return fiber.NewError(status, "storage unavailable, retry later")
	default:
		return fiber.NewError(status, err.Error())
	}
}

// Handler is the fiber ErrorHandler. It renders {"error": message} and logs
// server-side failures.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		fe := From(err)
		if fe.Code >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", fe.Code),
				slog.Any("error", err),
			)
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
}
