/**
 * PostgreSQL archive for the telemetry extraction worker
 *
 * Persists run metadata and reconciled records so extracted tracks survive
 * the per-video output files. The archive is optional: with no DATABASE_URL
 * configured the pipeline writes CSV and GPX only.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

// TelemetryStore handles database operations
type TelemetryStore struct {
	db *sql.DB
}

// RunSummary is the per-video run row persisted alongside its records.
type RunSummary struct {
	RunID          string
	VideoPath      string
	FramesSampled  int
	FramesFailed   int
	RecordsWritten int
	TrackExported  bool
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewTelemetryStore connects to the archive database.
func NewTelemetryStore(databaseURL string) (*TelemetryStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Runs are few and bulk-insert heavy, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &TelemetryStore{db: db}, nil
}

// SaveRun upserts one run summary row.
func (s *TelemetryStore) SaveRun(ctx context.Context, run *RunSummary) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	query := `
		INSERT INTO telemetry.runs (
			run_id, video_path, frames_sampled, frames_failed,
			records_written, track_exported, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			frames_sampled = EXCLUDED.frames_sampled,
			frames_failed = EXCLUDED.frames_failed,
			records_written = EXCLUDED.records_written,
			track_exported = EXCLUDED.track_exported,
			finished_at = EXCLUDED.finished_at`

	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.VideoPath, run.FramesSampled, run.FramesFailed,
		run.RecordsWritten, run.TrackExported, run.StartedAt, run.FinishedAt)
	if err != nil {
		return errors.NewStorageFailedError(run.RunID, fmt.Errorf("failed to save run: %w", err))
	}
	return nil
}

// SaveRecords bulk-inserts a run's reconciled records via COPY.
func (s *TelemetryStore) SaveRecords(ctx context.Context, runID string, records []telemetry.Record) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageFailedError(runID, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("telemetry", "records",
		"run_id", "frame_filename", "record_date", "record_time",
		"speed_mph", "latitude", "longitude"))
	if err != nil {
		return errors.NewStorageFailedError(runID, fmt.Errorf("failed to prepare COPY: %w", err))
	}

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			runID, rec.Filename, rec.Date, rec.Time,
			rec.SpeedMph, rec.Latitude, rec.Longitude); err != nil {
			stmt.Close()
			return errors.NewStorageFailedError(runID, fmt.Errorf("failed to buffer record: %w", err))
		}
	}

	// Flush the COPY stream
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.NewStorageFailedError(runID, fmt.Errorf("failed to flush COPY: %w", err))
	}
	if err := stmt.Close(); err != nil {
		return errors.NewStorageFailedError(runID, fmt.Errorf("failed to close COPY: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageFailedError(runID, fmt.Errorf("failed to commit records: %w", err))
	}
	return nil
}

// GetRun loads one run summary.
func (s *TelemetryStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	query := `
		SELECT run_id, video_path, frames_sampled, frames_failed,
		       records_written, track_exported, started_at, finished_at
		FROM telemetry.runs WHERE run_id = $1`

	var run RunSummary
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &run.VideoPath, &run.FramesSampled, &run.FramesFailed,
		&run.RecordsWritten, &run.TrackExported, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, errors.NewStorageFailedError(runID, err)
	}
	return &run, nil
}

// Ping checks database connectivity
func (s *TelemetryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *TelemetryStore) Close() error {
	return s.db.Close()
}
