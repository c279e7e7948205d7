package models

import "time"

// UploadRecord describes one dataset replacement.
type UploadRecord struct {
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// RunRecord describes one segmentation request, successful or not.
type RunRecord struct {
	ID             string    `json:"id"`
	DatasetVersion string    `json:"dataset_version"`
	Algorithm      string    `json:"algorithm"`
	Linkage        string    `json:"linkage,omitempty"`
	Features       []string  `json:"features"`
	Clusters       int       `json:"n_clusters"`
	NumPoints      int       `json:"num_points"`
	DroppedRows    int       `json:"dropped_rows"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	LatencyMS      int       `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
