// Package store holds the single in-memory dataset and its most recent segmentation.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/internal/evaluation"
	"github.com/rake220/customer-segmentation/internal/summary"
)

// Segmentation is the committed result of one segmentation run.
type Segmentation struct {
	ID             string
	DatasetVersion string
	Features       []string
	Algorithm      string
	Linkage        string
	Clusters       int
	// Labels[i] is the segment of Dataset row i and of source row Retained[i].
	Labels      []int
	Retained    []int
	DroppedRows int
	Dataset     *dataset.Dataset
	Summaries   map[int]summary.SegmentSummary
	// Quality is nil when scoring failed.
	Quality   *evaluation.Report
	CreatedAt time.Time
}

// Snapshot is a dataset captured together with the version it was stored under.
type Snapshot struct {
	Dataset *dataset.Dataset
	Version string
}

// Store guards the dataset, its version and the segmentation as one unit. Values
// handed out are immutable; replacing a slot swaps pointers.
type Store struct {
	mu           sync.RWMutex
	dataset      *dataset.Dataset
	version      string
	segmentation *Segmentation
}

func New() *Store {
	return &Store{}
}

// ReplaceDataset stores d under a fresh version and drops any segmentation.
func (s *Store) ReplaceDataset(d *dataset.Dataset) string {
	version := uuid.New().String()

	s.mu.Lock()
	s.dataset = d
	s.version = version
	s.segmentation = nil
	s.mu.Unlock()

	return version
}

func (s *Store) Dataset() (*dataset.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.dataset != nil
}

func (s *Store) Segmentation() (*Segmentation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segmentation, s.segmentation != nil
}

// SegmentedDataset returns the dataset of the current segmentation, if any.
func (s *Store) SegmentedDataset() (*dataset.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.segmentation == nil {
		return nil, false
	}
	return s.segmentation.Dataset, true
}

// State returns the dataset and segmentation read under one lock acquisition.
func (s *Store) State() (*dataset.Dataset, *Segmentation) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.segmentation
}

func (s *Store) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dataset == nil {
		return Snapshot{}, false
	}
	return Snapshot{Dataset: s.dataset, Version: s.version}, true
}

// CommitSegmentation stores seg if the dataset it was computed from is still current.
func (s *Store) CommitSegmentation(seg *Segmentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataset == nil || seg.DatasetVersion != s.version {
		return apperr.ConcurrentModification("data changed during segmentation, retry")
	}
	s.segmentation = seg
	return nil
}
