package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/features"
	"github.com/rake220/customer-segmentation/internal/segmentation"
	"github.com/rake220/customer-segmentation/internal/summary"
)

type SegmentDefaults struct {
	Algorithm string
	Clusters  int
}

type SegmentHandler struct {
	service  *segmentation.Service
	defaults SegmentDefaults
}

func NewSegmentHandler(service *segmentation.Service, defaults SegmentDefaults) *SegmentHandler {
	if defaults.Algorithm == "" {
		defaults.Algorithm = "kmeans"
	}
	if defaults.Clusters == 0 {
		defaults.Clusters = 3
	}
	return &SegmentHandler{
		service:  service,
		defaults: defaults,
	}
}

// Segment runs a segmentation with query parameters features, algorithm, n_clusters
// and linkage.
func (h *SegmentHandler) Segment(c *fiber.Ctx) error {
	clusters := h.defaults.Clusters
	if raw := c.Query("n_clusters"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(c, apperr.InvalidInput("n_clusters must be an integer, got '%s'", raw))
		}
		clusters = n
	}

	req := segmentation.Request{
		Features:  features.ParseSelection(c.Query("features")),
		Algorithm: c.Query("algorithm", h.defaults.Algorithm),
		Clusters:  clusters,
		Linkage:   c.Query("linkage"),
	}

	seg, err := h.service.Segment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":         segmentation.Message(seg),
		"segmentation_id": seg.ID,
		"segments":        summary.SegmentIDs(seg.Summaries),
		"num_points":      len(seg.Labels),
		"dropped_rows":    seg.DroppedRows,
		"summaries":       seg.Summaries,
		"quality":         seg.Quality,
	})
}
