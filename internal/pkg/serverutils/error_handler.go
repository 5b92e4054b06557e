package serverutils

import (
	"errors"

	"inventory-assistant-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns handler errors into the JSON envelope used by every route.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var verr *ValidationError
		if errors.As(err, &verr) {
			resp := ErrorResponse(fiber.StatusBadRequest, "Validation failed")
			resp.Errors = verr.Fields
			return ctx.Status(fiber.StatusBadRequest).JSON(resp)
		}

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return ctx.Status(ferr.Code).JSON(ErrorResponse(ferr.Code, ferr.Message))
		}

		log.Error("HTTP", "Unhandled request error", map[string]interface{}{
			"path":   ctx.Path(),
			"method": ctx.Method(),
			"error":  err,
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
