package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/pkg/logger"
)

// respondError writes {"error": message} with the status of the error's kind.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.Status(err)
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Warn("Request rejected", fields...)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": apperr.Message(err),
	})
}
