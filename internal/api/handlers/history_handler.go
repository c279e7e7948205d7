package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/storage/models"
)

const maxHistoryLimit = 500

type HistoryReader interface {
	ListRuns(limit int) ([]models.RunRecord, error)
	ListUploads(limit int) ([]models.UploadRecord, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

// GetHistory lists recent uploads and segmentation runs, newest first.
func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > maxHistoryLimit {
		return respondError(c, apperr.InvalidInput("limit must be between 1 and %d", maxHistoryLimit))
	}

	runs, err := h.history.ListRuns(limit)
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.KindUnknown, err, "Failed to read segmentation history"))
	}
	uploads, err := h.history.ListUploads(limit)
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.KindUnknown, err, "Failed to read upload history"))
	}

	return c.JSON(fiber.Map{
		"runs":    runs,
		"uploads": uploads,
	})
}
