package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rake220/customer-segmentation/internal/store"
)

type SystemHandler struct {
	store *store.Store
}

func NewSystemHandler(st *store.Store) *SystemHandler {
	return &SystemHandler{
		store: st,
	}
}

func (h *SystemHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Welcome to the Customer Segmentation API",
	})
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports whether a dataset and a segmentation are loaded.
func (h *SystemHandler) Ready(c *fiber.Ctx) error {
	d, seg := h.store.State()
	rows := 0
	if d != nil {
		rows = d.NumRows()
	}
	return c.JSON(fiber.Map{
		"status":         "ready",
		"dataset_loaded": d != nil,
		"rows":           rows,
		"segmented":      seg != nil,
	})
}
