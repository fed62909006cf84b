package middlewares

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/opsdeck/console/internal/handlers/api"
)

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code == fiber.StatusInternalServerError {
		// infra faults are logged server-side, never detailed to the client
		slog.Error("unhandled error", "path", ctx.Path(), "code", code, "error", err)
		message = "Internal server error"
	}
	return ctx.Status(code).JSON(api.NewErrorResponse(code, message))
}
