package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rake220/customer-segmentation/internal/query"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

func (h *QueryHandler) GetCustomer(c *fiber.Ctx) error {
	record, err := h.queryEngine.CustomerByID(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(record)
}

func (h *QueryHandler) GetSegment(c *fiber.Ctx) error {
	id, err := query.ParseSegmentID(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	records, err := h.queryEngine.CustomersInSegment(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(records)
}

func (h *QueryHandler) ListSegments(c *fiber.Ctx) error {
	overview, err := h.queryEngine.SegmentCounts()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}
