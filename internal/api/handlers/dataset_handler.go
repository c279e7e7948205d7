package handlers

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/chart"
	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/internal/export"
	"github.com/rake220/customer-segmentation/internal/metrics"
	"github.com/rake220/customer-segmentation/internal/segmentation"
	"github.com/rake220/customer-segmentation/internal/store"
	"github.com/rake220/customer-segmentation/pkg/logger"
)

type DatasetHandler struct {
	service *segmentation.Service
	store   *store.Store
}

func NewDatasetHandler(service *segmentation.Service, st *store.Store) *DatasetHandler {
	return &DatasetHandler{
		service: service,
		store:   st,
	}
}

// Upload replaces the dataset with the CSV sent in the multipart "file" field.
func (h *DatasetHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return respondError(c, apperr.Wrap(apperr.KindInvalidInput, err, "No file uploaded. Send the CSV in the 'file' field."))
	}

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return respondError(c, apperr.InvalidInput("Invalid file type. Please upload a CSV file."))
	}

	f, err := fh.Open()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return respondError(c, apperr.Wrap(apperr.KindInvalidInput, err, "Failed to read uploaded file"))
	}
	defer f.Close()

	d, err := dataset.ParseCSV(f)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return respondError(c, apperr.Wrap(apperr.KindInvalidInput, err, "Failed to parse CSV: %v", err))
	}

	version := h.service.Upload(fh.Filename, d)

	return c.JSON(fiber.Map{
		"message": "File uploaded successfully",
		"columns": d.Columns(),
		"rows":    d.NumRows(),
		"version": version,
	})
}

// Download returns the segmented dataset as CSV text in JSON or as an xlsx attachment.
func (h *DatasetHandler) Download(c *fiber.Ctx) error {
	segmented, ok := h.store.SegmentedDataset()
	if !ok {
		return respondError(c, apperr.PreconditionMissing("No segmented data available. Run segmentation first."))
	}

	format := strings.ToLower(c.Query("format", "csv"))
	switch format {
	case "csv":
		data, err := export.CSV(segmented)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"filename": export.CSVFilename,
			"content":  string(data),
		})
	case "xlsx":
		data, err := export.XLSX(segmented)
		if err != nil {
			return respondError(c, err)
		}
		logger.Debug("Serving xlsx export", zap.Int("bytes", len(data)), zap.Int("rows", segmented.NumRows()))
		c.Attachment(export.XLSXFilename)
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		return c.Send(data)
	default:
		return respondError(c, apperr.InvalidInput("Unsupported format '%s'. Use csv or xlsx.", format))
	}
}

// Chart renders a PNG scatter of two numeric columns coloured by segment.
func (h *DatasetHandler) Chart(c *fiber.Ctx) error {
	segmented, ok := h.store.SegmentedDataset()
	if !ok {
		return respondError(c, apperr.PreconditionMissing("No segmentation performed yet."))
	}

	size := chart.DefaultSize
	if raw := c.Query("size"); raw != "" {
		inches, err := strconv.Atoi(raw)
		if err != nil || inches <= 0 {
			return respondError(c, apperr.InvalidInput("Invalid size '%s'", raw))
		}
		size = vg.Length(inches) * vg.Inch
	}

	img, err := chart.SegmentScatter(segmented, h.service.SegmentColumn(), c.Query("x"), c.Query("y"), size)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(img)
}
