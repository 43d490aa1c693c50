/**
 * Video Processor for the telemetry extraction worker
 *
 * Orchestrates one video run end to end:
 * - Frame sampling (ffmpeg, one frame per overlay clock tick)
 * - Overlay band cropping (ImageMagick)
 * - OCR over the cropped band (Tesseract)
 * - Normalization and field extraction per frame
 * - Temporal/value reconciliation across the frame sequence
 * - Timestamp-deduplicated CSV output plus a GPX 1.1 track
 *
 * Reconciliation needs one frame of lookahead, so the run is two passes:
 * extract every frame first, then reconcile the buffered results.
 */

package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/frames"
	"github.com/dashtrail/telemetry-worker/internal/gpx"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/ocr"
	"github.com/dashtrail/telemetry-worker/internal/storage"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

// VideoProcessorInterface defines the interface for video processing
type VideoProcessorInterface interface {
	ProcessVideo(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Sampler *frames.Sampler
	Cropper *frames.Cropper

	// Engines opens one OCR engine per run; the Tesseract client cannot
	// be shared across concurrent jobs
	Engines ocr.EngineFactory

	Reconciler *telemetry.Reconciler

	// TempDir receives the per-run working directories
	TempDir string

	// Store is the optional archive; nil disables persistence
	Store *storage.TelemetryStore

	// KeepFrames leaves the working directory in place after the run
	KeepFrames bool
}

// ProcessRequest represents one video processing request
type ProcessRequest struct {
	RunID     string
	VideoPath string

	// Start and Duration bound the sampled window, zero means whole video
	Start    time.Duration
	Duration time.Duration

	// ExtractOnly stops after frame sampling, leaving the frames on disk
	// for inspection and producing no CSV or GPX
	ExtractOnly bool
}

// ProcessResult represents the run outcome
type ProcessResult struct {
	CSVPath        string
	GPXPath        string
	FramesSampled  int
	FramesFailed   int
	RecordsWritten int
	TrackExported  bool
	ProcessingTime time.Duration
}

// VideoProcessor handles video telemetry extraction
type VideoProcessor struct {
	config *ProcessorConfig
	logger *logging.Logger
}

// NewVideoProcessor creates a new video processor
func NewVideoProcessor(cfg *ProcessorConfig) (*VideoProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Sampler == nil || cfg.Cropper == nil {
		return nil, fmt.Errorf("sampler and cropper are required")
	}
	if cfg.Engines == nil {
		return nil, fmt.Errorf("OCR engine factory is required")
	}
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	return &VideoProcessor{
		config: cfg,
		logger: logging.NewLogger("processor"),
	}, nil
}

// ProcessVideo runs the full pipeline for one video. The CSV and GPX are
// written next to the video file; a GPX export failure for lack of
// coordinates leaves the CSV in place and is reported on the result, not
// as a run failure. Safe for concurrent calls: each run works out of its
// own directory, opens its own OCR engine, and probes its own geometry.
func (p *VideoProcessor) ProcessVideo(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	p.logger.Info("processing video", "run_id", req.RunID, "video", req.VideoPath)

	// Extract-only runs and -keep-frames leave their working files next
	// to the video where the caller can find them; everything else works
	// out of a disposable run directory.
	keep := p.config.KeepFrames || req.ExtractOnly
	var workDir string
	if keep {
		workDir = outputPath(req.VideoPath, "_output")
	} else {
		workDir = filepath.Join(p.config.TempDir, "run-"+req.RunID)
	}
	frameDir := filepath.Join(workDir, "frames")
	cropDir := filepath.Join(workDir, "cropped")
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	if !keep {
		defer os.RemoveAll(workDir)
	}

	sampled, err := p.config.Sampler.Sample(ctx, req.VideoPath, frameDir, req.Start, req.Duration)
	if err != nil {
		return nil, err
	}
	p.logger.Info("frames sampled", "run_id", req.RunID, "count", len(sampled))

	if req.ExtractOnly {
		result := &ProcessResult{
			FramesSampled:  len(sampled),
			ProcessingTime: time.Since(startTime),
		}
		p.logger.Info("extract-only run finished", "run_id", req.RunID, "frames", frameDir)
		return result, nil
	}

	if err := os.MkdirAll(cropDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	engine, err := p.config.Engines()
	if err != nil {
		return nil, fmt.Errorf("failed to open OCR engine: %w", err)
	}
	defer engine.Close()

	extractions, failed := p.extractAll(ctx, req.RunID, engine, sampled, cropDir, keep)

	records := p.config.Reconciler.ReconcileAll(extractions)

	csvPath := outputPath(req.VideoPath, ".csv")
	written, err := p.writeCSV(csvPath, records)
	if err != nil {
		return nil, err
	}
	p.logger.Info("telemetry written", "run_id", req.RunID, "csv", csvPath, "rows", written)

	result := &ProcessResult{
		CSVPath:        csvPath,
		FramesSampled:  len(sampled),
		FramesFailed:   failed,
		RecordsWritten: written,
	}

	gpxPath := outputPath(req.VideoPath, ".gpx")
	if err := p.exportTrack(csvPath, gpxPath); err != nil {
		// The CSV stays useful without a track.
		p.logger.Error("track export failed", "run_id", req.RunID, "error", err)
	} else {
		result.GPXPath = gpxPath
		result.TrackExported = true
	}

	result.ProcessingTime = time.Since(startTime)

	if p.config.Store != nil {
		if err := p.archive(ctx, req, result, records, startTime); err != nil {
			p.logger.Error("archive failed", "run_id", req.RunID, "error", err)
		}
	}

	return result, nil
}

// extractAll runs crop, OCR, normalize and extract over every sampled
// frame. A frame that fails any stage is logged and skipped; the
// reconciler closes the gap from carried state. The crop geometry is
// probed from this run's own frames, so videos at different resolutions
// never see each other's band.
func (p *VideoProcessor) extractAll(ctx context.Context, runID string, engine ocr.Engine, sampled []frames.Frame, cropDir string, keep bool) ([]telemetry.Extraction, int) {
	extractions := make([]telemetry.Extraction, 0, len(sampled))
	failed := 0

	var geom frames.Geometry
	for _, frame := range sampled {
		if ctx.Err() != nil {
			p.logger.Warn("extraction interrupted", "run_id", runID, "at_frame", frame.Index)
			break
		}

		name := filepath.Base(frame.Path)
		cropped := filepath.Join(cropDir, name)

		if geom.Width == 0 {
			g, err := p.config.Cropper.Probe(ctx, frame.Path)
			if err != nil {
				p.logger.Warn("geometry probe failed, frame skipped", "run_id", runID, "frame", name, "error", err)
				if !keep {
					os.Remove(frame.Path)
				}
				failed++
				continue
			}
			geom = g
		}

		err := p.config.Cropper.Crop(ctx, frame.Path, cropped, geom)
		// The full-size frame is only needed for the crop.
		if !keep {
			os.Remove(frame.Path)
		}
		if err != nil {
			p.logger.Warn("crop failed, frame skipped", "run_id", runID, "frame", name, "error", err)
			failed++
			continue
		}

		raw, err := engine.Recognize(ctx, cropped)
		// The cropped band has served its purpose either way.
		if !keep {
			os.Remove(cropped)
		}
		if err != nil {
			ocrErr := errors.NewOCRFailedError(runID, name, err)
			p.logger.Warn("recognition failed, frame skipped", "run_id", runID, "frame", name, "error", ocrErr)
			failed++
			continue
		}

		text := telemetry.Normalize(raw)
		extractions = append(extractions, telemetry.Extraction{
			Filename:   name,
			FrameIndex: frame.Index,
			Fields:     telemetry.Extract(text, name),
		})
	}

	return extractions, failed
}

// writeCSV emits the reconciled records through the deduplicating sink and
// reports how many rows survived.
func (p *VideoProcessor) writeCSV(path string, records []telemetry.Record) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	sink, err := telemetry.NewSink(file)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, rec := range records {
		ok, err := sink.Emit(rec)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	if err := sink.Flush(); err != nil {
		return written, err
	}
	return written, nil
}

// exportTrack reads the CSV back and writes the GPX file next to it. Going
// through the CSV rather than the in-memory records keeps the export
// usable standalone against a previously extracted file.
func (p *VideoProcessor) exportTrack(csvPath, gpxPath string) error {
	records, err := telemetry.ReadRecords(csvPath)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	exporter := gpx.NewExporter(p.logger)
	doc, err := exporter.Export(records, name)
	if err == gpx.ErrNoCoordinates {
		return errors.NewNoCoordinatesError("", len(records))
	}
	if err != nil {
		return err
	}
	return exporter.Write(doc, gpxPath)
}

// archive persists the run summary and records when a store is configured.
func (p *VideoProcessor) archive(ctx context.Context, req *ProcessRequest, result *ProcessResult, records []telemetry.Record, startedAt time.Time) error {
	run := &storage.RunSummary{
		RunID:          req.RunID,
		VideoPath:      req.VideoPath,
		FramesSampled:  result.FramesSampled,
		FramesFailed:   result.FramesFailed,
		RecordsWritten: result.RecordsWritten,
		TrackExported:  result.TrackExported,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
	}
	if err := p.config.Store.SaveRun(ctx, run); err != nil {
		return err
	}
	return p.config.Store.SaveRecords(ctx, req.RunID, records)
}

// outputPath swaps a video path's extension, keeping directory and stem.
func outputPath(videoPath, ext string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ext
}
