package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/storage/models"
	"github.com/rake220/customer-segmentation/pkg/logger"
)

// Client records uploads and segmentation runs. It is an audit log only; the
// serving state is never restored from it.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: opens a separate database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		version TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		rows INTEGER NOT NULL,
		columns TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at);

	CREATE TABLE IF NOT EXISTS segmentation_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT,
		dataset_version TEXT,
		algorithm TEXT NOT NULL,
		linkage TEXT,
		features TEXT NOT NULL,
		clusters INTEGER NOT NULL,
		num_points INTEGER NOT NULL DEFAULT 0,
		dropped_rows INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_version ON segmentation_runs(dataset_version);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON segmentation_runs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertUpload(record *models.UploadRecord) error {
	query := `
		INSERT INTO uploads (version, source, rows, columns, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	columnsJSON, err := json.Marshal(record.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	_, err = c.db.Exec(
		query,
		record.Version,
		record.Source,
		record.Rows,
		string(columnsJSON),
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}

	logger.Debug("Upload recorded", zap.String("version", record.Version), zap.Int("rows", record.Rows))
	return nil
}

func (c *Client) InsertRun(record *models.RunRecord) error {
	query := `
		INSERT INTO segmentation_runs (id, dataset_version, algorithm, linkage, features, clusters,
			num_points, dropped_rows, status, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	_, err = c.db.Exec(
		query,
		record.ID,
		record.DatasetVersion,
		record.Algorithm,
		record.Linkage,
		string(featuresJSON),
		record.Clusters,
		record.NumPoints,
		record.DroppedRows,
		record.Status,
		record.Error,
		record.LatencyMS,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert segmentation run: %w", err)
	}

	logger.Debug("Segmentation run recorded",
		zap.String("id", record.ID),
		zap.String("status", record.Status),
	)
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (c *Client) ListRuns(limit int) ([]models.RunRecord, error) {
	query := `
		SELECT id, dataset_version, algorithm, linkage, features, clusters, num_points,
			dropped_rows, status, error, latency_ms, created_at
		FROM segmentation_runs
		ORDER BY seq DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list segmentation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.RunRecord, 0)
	for rows.Next() {
		var run models.RunRecord
		var id, version, linkage, runErr sql.NullString
		var featuresJSON string
		var createdAt int64

		err := rows.Scan(
			&id,
			&version,
			&run.Algorithm,
			&linkage,
			&featuresJSON,
			&run.Clusters,
			&run.NumPoints,
			&run.DroppedRows,
			&run.Status,
			&runErr,
			&run.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segmentation run: %w", err)
		}

		run.ID = id.String
		run.DatasetVersion = version.String
		run.Linkage = linkage.String
		run.Error = runErr.String
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(featuresJSON), &run.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ListUploads returns up to limit uploads, newest first.
func (c *Client) ListUploads(limit int) ([]models.UploadRecord, error) {
	query := `SELECT version, source, rows, columns, created_at FROM uploads ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]models.UploadRecord, 0)
	for rows.Next() {
		var upload models.UploadRecord
		var columnsJSON string
		var createdAt int64

		if err := rows.Scan(&upload.Version, &upload.Source, &upload.Rows, &columnsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if err := json.Unmarshal([]byte(columnsJSON), &upload.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
		upload.CreatedAt = time.UnixMilli(createdAt).UTC()

		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}
