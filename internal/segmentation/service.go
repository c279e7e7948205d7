// Package segmentation runs the feature, clustering and summary steps against a
// snapshot of the store and commits the result.
package segmentation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/cluster"
	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/internal/evaluation"
	"github.com/rake220/customer-segmentation/internal/events"
	"github.com/rake220/customer-segmentation/internal/features"
	"github.com/rake220/customer-segmentation/internal/metrics"
	"github.com/rake220/customer-segmentation/internal/storage/models"
	"github.com/rake220/customer-segmentation/internal/store"
	"github.com/rake220/customer-segmentation/internal/summary"
	"github.com/rake220/customer-segmentation/pkg/logger"
	"github.com/rake220/customer-segmentation/pkg/utils"
)

// ResultCache stores label vectors keyed by dataset version and request.
type ResultCache interface {
	GetResult(ctx context.Context, key string, value interface{}) (bool, error)
	SetResult(ctx context.Context, key string, value interface{}) error
}

// History records uploads and segmentation runs for auditing.
type History interface {
	InsertUpload(record *models.UploadRecord) error
	InsertRun(record *models.RunRecord) error
}

type Config struct {
	SegmentColumn      string
	CategoricalColumns []string
	// Cluster carries seed and iteration limits; Algorithm, Clusters and Linkage
	// come from each request.
	Cluster cluster.Options
	// MaxSilhouetteRows bounds quality scoring; zero selects the evaluator default.
	MaxSilhouetteRows int
}

type Request struct {
	Features  []string
	Algorithm string
	Clusters  int
	Linkage   string
}

type Service struct {
	store     *store.Store
	hub       *events.Hub
	cache     ResultCache
	history   History
	evaluator *evaluation.Evaluator
	cfg       Config
}

type cachedLabels struct {
	Labels []int `json:"labels"`
}

// NewService wires the service. hub, cache and history may be nil.
func NewService(st *store.Store, hub *events.Hub, cache ResultCache, history History, cfg Config) *Service {
	if cfg.SegmentColumn == "" {
		cfg.SegmentColumn = "Segment"
	}
	return &Service{
		store:     st,
		hub:       hub,
		cache:     cache,
		history:   history,
		evaluator: evaluation.NewEvaluator(cfg.MaxSilhouetteRows),
		cfg:       cfg,
	}
}

func (s *Service) SegmentColumn() string {
	return s.cfg.SegmentColumn
}

// Upload replaces the stored dataset and drops any previous segmentation.
func (s *Service) Upload(source string, d *dataset.Dataset) string {
	version := s.store.ReplaceDataset(d)

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.DatasetRows.Set(float64(d.NumRows()))
	metrics.SegmentsCount.Set(0)

	logger.Info("Dataset replaced",
		zap.String("source", source),
		zap.String("version", version),
		zap.Int("rows", d.NumRows()),
		zap.Int("columns", d.NumColumns()),
	)

	if s.history != nil {
		err := s.history.InsertUpload(&models.UploadRecord{
			Version:   version,
			Source:    source,
			Rows:      d.NumRows(),
			Columns:   d.Columns(),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			logger.Warn("Failed to record upload", zap.Error(err))
		}
	}

	s.publish(events.Event{
		Type:           events.TypeDatasetReplaced,
		DatasetVersion: version,
		Rows:           d.NumRows(),
	})
	return version
}

// Segment clusters the current dataset. The computation runs without holding the
// store lock; if the dataset is replaced meanwhile the result is discarded.
func (s *Service) Segment(ctx context.Context, req Request) (*store.Segmentation, error) {
	start := time.Now()

	seg, err := s.segment(ctx, req)

	status := "success"
	if err != nil {
		status = apperr.KindOf(err).String()
	}
	elapsed := time.Since(start)
	label := algorithmLabel(req.Algorithm)
	metrics.SegmentationTotal.WithLabelValues(label, status).Inc()
	metrics.SegmentationDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	s.recordRun(req, seg, status, err, elapsed)

	return seg, err
}

// algorithmLabel bounds the metric label set to the supported algorithms.
func algorithmLabel(raw string) string {
	algorithm, err := cluster.ParseAlgorithm(raw)
	if err != nil {
		return "unsupported"
	}
	return string(algorithm)
}

func (s *Service) recordRun(req Request, seg *store.Segmentation, status string, runErr error, elapsed time.Duration) {
	if s.history == nil {
		return
	}

	record := &models.RunRecord{
		Algorithm: strings.ToLower(strings.TrimSpace(req.Algorithm)),
		Linkage:   req.Linkage,
		Features:  features.Normalize(req.Features),
		Clusters:  req.Clusters,
		Status:    status,
		LatencyMS: int(elapsed.Milliseconds()),
		CreatedAt: time.Now().UTC(),
	}
	if runErr != nil {
		record.Error = apperr.Message(runErr)
	}
	if seg != nil {
		record.ID = seg.ID
		record.Algorithm = seg.Algorithm
		record.DatasetVersion = seg.DatasetVersion
		record.Linkage = seg.Linkage
		record.NumPoints = len(seg.Labels)
		record.DroppedRows = seg.DroppedRows
	} else if snap, ok := s.store.Snapshot(); ok {
		record.DatasetVersion = snap.Version
	}

	if err := s.history.InsertRun(record); err != nil {
		logger.Warn("Failed to record segmentation run", zap.Error(err))
	}
}

func (s *Service) segment(ctx context.Context, req Request) (*store.Segmentation, error) {
	snap, ok := s.store.Snapshot()
	if !ok {
		return nil, apperr.PreconditionMissing("No data uploaded. Please upload CSV first.")
	}

	algorithm, err := cluster.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Cluster
	opts.Algorithm = algorithm
	opts.Clusters = req.Clusters
	opts.Linkage = ""
	if algorithm == cluster.Agglomerative {
		if opts.Linkage, err = cluster.ParseLinkage(req.Linkage); err != nil {
			return nil, err
		}
	}

	selected := features.Normalize(req.Features)
	matrix, err := features.Build(snap.Dataset, selected)
	if err != nil {
		return nil, err
	}
	if matrix.Dropped > 0 {
		metrics.RowsDropped.Add(float64(matrix.Dropped))
		logger.Info("Rows dropped before clustering",
			zap.Int("dropped", matrix.Dropped),
			zap.Int("retained", matrix.NumRows()),
		)
	}

	cacheKey := utils.HashParts(snap.Version, strings.Join(matrix.Columns, ","), string(algorithm),
		string(opts.Linkage), strconv.Itoa(opts.Clusters), strconv.FormatInt(opts.Seed, 10))

	labels, hit := s.cachedLabels(ctx, cacheKey, matrix.NumRows())
	if !hit {
		labels, err = cluster.Segment(ctx, matrix.Rows, opts)
		if err != nil {
			return nil, err
		}
		s.storeLabels(ctx, cacheKey, labels)
	}

	segmented, err := buildSegmented(snap.Dataset, matrix.Retained, labels, s.cfg.SegmentColumn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindComputationFailure, err, "Failed to build segmented dataset")
	}

	summaries, err := summary.Build(segmented, s.cfg.SegmentColumn, s.cfg.CategoricalColumns)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindComputationFailure, err, "Failed to summarise segments")
	}

	quality, err := s.evaluator.Evaluate(ctx, matrix.Rows, labels)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindComputationFailure, err, "Segmentation cancelled")
		}
		logger.Warn("Failed to score segmentation", zap.Error(err))
		quality = nil
	}

	seg := &store.Segmentation{
		ID:             uuid.New().String(),
		DatasetVersion: snap.Version,
		Features:       selected,
		Algorithm:      string(algorithm),
		Linkage:        string(opts.Linkage),
		Clusters:       opts.Clusters,
		Labels:         labels,
		Retained:       matrix.Retained,
		DroppedRows:    matrix.Dropped,
		Dataset:        segmented,
		Summaries:      summaries,
		Quality:        quality,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.CommitSegmentation(seg); err != nil {
		logger.Warn("Discarding segmentation computed on a replaced dataset",
			zap.String("dataset_version", snap.Version),
		)
		return nil, err
	}

	ids := summary.SegmentIDs(summaries)
	metrics.SegmentsCount.Set(float64(len(ids)))
	logger.Info("Segmentation committed",
		zap.String("segmentation_id", seg.ID),
		zap.String("algorithm", seg.Algorithm),
		zap.Strings("features", selected),
		zap.Int("clusters", seg.Clusters),
		zap.Int("rows", len(labels)),
		zap.Bool("cached", hit),
	)

	s.publish(events.Event{
		Type:           events.TypeSegmentationCommitted,
		DatasetVersion: snap.Version,
		SegmentationID: seg.ID,
		Rows:           len(labels),
		Segments:       ids,
	})
	return seg, nil
}

// Message describes a committed segmentation for API callers.
func Message(seg *store.Segmentation) string {
	return fmt.Sprintf("Data segmented using %s with features %v.", seg.Algorithm, seg.Features)
}

func buildSegmented(d *dataset.Dataset, retained, labels []int, segmentColumn string) (*dataset.Dataset, error) {
	if len(retained) != len(labels) {
		return nil, fmt.Errorf("%d labels for %d retained rows", len(labels), len(retained))
	}
	subset, err := d.Subset(retained)
	if err != nil {
		return nil, err
	}
	cells := make([]dataset.Cell, len(labels))
	for i, l := range labels {
		cells[i] = dataset.IntCell(int64(l))
	}
	return subset.WithColumn(segmentColumn, cells)
}

func (s *Service) cachedLabels(ctx context.Context, key string, rows int) ([]int, bool) {
	if s.cache == nil {
		return nil, false
	}

	var cached cachedLabels
	found, err := s.cache.GetResult(ctx, key, &cached)
	if err != nil {
		logger.Warn("Segmentation cache lookup failed", zap.Error(err))
		metrics.CacheMisses.WithLabelValues("segmentation").Inc()
		return nil, false
	}
	if !found || len(cached.Labels) != rows {
		metrics.CacheMisses.WithLabelValues("segmentation").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("segmentation").Inc()
	return cached.Labels, true
}

func (s *Service) storeLabels(ctx context.Context, key string, labels []int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetResult(ctx, key, cachedLabels{Labels: labels}); err != nil {
		logger.Warn("Failed to cache segmentation", zap.Error(err))
	}
}

func (s *Service) publish(ev events.Event) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}
