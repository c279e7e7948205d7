package query

import (
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/internal/evaluation"
	"github.com/rake220/customer-segmentation/internal/metrics"
	"github.com/rake220/customer-segmentation/internal/store"
	"github.com/rake220/customer-segmentation/pkg/logger"
)

// Engine answers read-only questions about the stored dataset and segmentation.
type Engine struct {
	store         *store.Store
	idColumn      string
	segmentColumn string
}

type SegmentCount struct {
	Segment int `json:"segment"`
	Count   int `json:"count"`
}

type SegmentOverview struct {
	SegmentationID string             `json:"segmentation_id"`
	DatasetVersion string             `json:"dataset_version"`
	Algorithm      string             `json:"algorithm"`
	Linkage        string             `json:"linkage,omitempty"`
	Features       []string           `json:"features"`
	Clusters       int                `json:"n_clusters"`
	NumPoints      int                `json:"num_points"`
	DroppedRows    int                `json:"dropped_rows"`
	Segments       []SegmentCount     `json:"segments"`
	Quality        *evaluation.Report `json:"quality,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func NewEngine(st *store.Store, idColumn, segmentColumn string) *Engine {
	if idColumn == "" {
		idColumn = "CustomerID"
	}
	if segmentColumn == "" {
		segmentColumn = "Segment"
	}
	return &Engine{
		store:         st,
		idColumn:      idColumn,
		segmentColumn: segmentColumn,
	}
}

// CustomerByID returns the first row whose id column matches id. The segmented
// dataset is searched when it has rows so the answer includes the segment.
func (e *Engine) CustomerByID(id string) (dataset.Record, error) {
	raw, seg := e.store.State()
	if raw == nil {
		e.record("customer", "precondition_missing")
		return dataset.Record{}, apperr.PreconditionMissing("No data uploaded. Please upload CSV first.")
	}

	source := raw
	if seg != nil && seg.Dataset != nil && !seg.Dataset.IsEmpty() {
		source = seg.Dataset
	}

	col, ok := source.ColumnIndex(e.idColumn)
	if !ok {
		e.record("customer", "not_found")
		return dataset.Record{}, apperr.NotFound("Customer with ID %s not found", id)
	}

	for i := 0; i < source.NumRows(); i++ {
		if source.Cell(i, col).Matches(id) {
			e.record("customer", "success")
			return source.Row(i), nil
		}
	}

	e.record("customer", "not_found")
	logger.Debug("Customer not found", zap.String("id", id), zap.Int("rows", source.NumRows()))
	return dataset.Record{}, apperr.NotFound("Customer with ID %s not found", id)
}

// CustomersInSegment returns the rows labelled segment, in dataset order.
func (e *Engine) CustomersInSegment(segment int) ([]dataset.Record, error) {
	seg, ok := e.store.Segmentation()
	if !ok {
		e.record("segment", "precondition_missing")
		return nil, apperr.PreconditionMissing("No segmentation performed yet.")
	}

	d := seg.Dataset
	col, ok := d.ColumnIndex(e.segmentColumn)
	if !ok {
		e.record("segment", "not_found")
		return nil, apperr.NotFound("No customers found in segment %d", segment)
	}

	var records []dataset.Record
	for i := 0; i < d.NumRows(); i++ {
		if label, ok := d.Cell(i, col).Int(); ok && label == int64(segment) {
			records = append(records, d.Row(i))
		}
	}
	if len(records) == 0 {
		e.record("segment", "not_found")
		return nil, apperr.NotFound("No customers found in segment %d", segment)
	}

	e.record("segment", "success")
	return records, nil
}

// SegmentCounts reports segment sizes for the current segmentation, ordered by id.
func (e *Engine) SegmentCounts() (*SegmentOverview, error) {
	seg, ok := e.store.Segmentation()
	if !ok {
		e.record("segments", "precondition_missing")
		return nil, apperr.PreconditionMissing("No segmentation performed yet.")
	}

	counts := make(map[int]int)
	for _, label := range seg.Labels {
		counts[label]++
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	segments := make([]SegmentCount, 0, len(ids))
	for _, id := range ids {
		segments = append(segments, SegmentCount{Segment: id, Count: counts[id]})
	}

	e.record("segments", "success")
	return &SegmentOverview{
		SegmentationID: seg.ID,
		DatasetVersion: seg.DatasetVersion,
		Algorithm:      seg.Algorithm,
		Linkage:        seg.Linkage,
		Features:       seg.Features,
		Clusters:       seg.Clusters,
		NumPoints:      len(seg.Labels),
		DroppedRows:    seg.DroppedRows,
		Segments:       segments,
		Quality:        seg.Quality,
		CreatedAt:      seg.CreatedAt,
	}, nil
}

// ParseSegmentID parses a segment id path parameter.
func ParseSegmentID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("Invalid segment id '%s'", raw)
	}
	return id, nil
}

func (e *Engine) record(queryType, status string) {
	metrics.QueryTotal.WithLabelValues(queryType, status).Inc()
}
