/**
 * Telemetry CLI - one-shot extraction entry point
 *
 * Runs the full pipeline against a single video file without any queue
 * infrastructure, re-exports a GPX track from a previously extracted CSV,
 * or hands a video job to a running worker's queue. The CSV and GPX land
 * next to the video.
 *
 * Usage:
 *   telemetry extract -video trip.mp4 [-start 30s] [-duration 2m] [-extract-only] [-keep-frames]
 *   telemetry export  -csv trip.csv
 *   telemetry enqueue -video trip.mp4 [-start 30s] [-duration 2m] [-extract-only]
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dashtrail/telemetry-worker/internal/config"
	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/frames"
	"github.com/dashtrail/telemetry-worker/internal/gpx"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/ocr"
	"github.com/dashtrail/telemetry-worker/internal/processor"
	"github.com/dashtrail/telemetry-worker/internal/queue"
	"github.com/dashtrail/telemetry-worker/internal/storage"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := godotenv.Load(".env.telemetry"); err != nil {
		log.Printf("Warning: .env.telemetry not found, using system environment variables")
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "enqueue":
		err = runEnqueue(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  telemetry extract -video <path> [-start 30s] [-duration 2m] [-extract-only] [-keep-frames]\n")
	fmt.Fprintf(os.Stderr, "  telemetry export  -csv <path>\n")
	fmt.Fprintf(os.Stderr, "  telemetry enqueue -video <path> [-start 30s] [-duration 2m] [-extract-only] [-redis <url>] [-queue <name>]\n")
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	videoPath := fs.String("video", "", "path to the dashcam video file")
	start := fs.Duration("start", 0, "offset into the video to start sampling")
	duration := fs.Duration("duration", 0, "length of the window to sample, 0 for the rest")
	extractOnly := fs.Bool("extract-only", false, "sample frames only, skipping OCR and all outputs")
	keepFrames := fs.Bool("keep-frames", false, "keep the sampled frames for inspection")
	fs.Parse(args)

	if *videoPath == "" {
		return fmt.Errorf("-video is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := frames.CheckTools(cfg.FFmpegPath, cfg.IdentifyPath, cfg.ConvertPath); err != nil {
		return err
	}
	if err := ocr.Check(); err != nil {
		return err
	}

	var store *storage.TelemetryStore
	if cfg.DatabaseURL != "" {
		store, err = storage.NewTelemetryStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to archive database: %w", err)
		}
		defer store.Close()
	}

	proc, err := processor.NewVideoProcessor(&processor.ProcessorConfig{
		Sampler:    frames.NewSampler(cfg.FFmpegPath, cfg.FrameRate, cfg.ToolTimeoutDuration(), logging.NewLogger("sampler")),
		Cropper:    frames.NewCropper(cfg.IdentifyPath, cfg.ConvertPath, cfg.BandHeight, cfg.ToolTimeoutDuration(), logging.NewLogger("cropper")),
		Engines:    ocr.TesseractFactory(ocr.Config{Language: cfg.TesseractLang}),
		Reconciler: telemetry.NewReconciler(cfg.Defaults(), cfg.SpeedJumpPercent, logging.NewLogger("reconciler")),
		TempDir:    cfg.TempDir,
		Store:      store,
		KeepFrames: *keepFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize video processor: %w", err)
	}

	ctx, cancel := signalContext(cfg.ProcessingTimeoutDuration())
	defer cancel()

	result, err := proc.ProcessVideo(ctx, &processor.ProcessRequest{
		RunID:       uuid.NewString(),
		VideoPath:   *videoPath,
		Start:       *start,
		Duration:    *duration,
		ExtractOnly: *extractOnly,
	})
	if err != nil {
		return err
	}

	log.Printf("Extraction finished in %s", result.ProcessingTime.Round(time.Millisecond))
	log.Printf("Frames sampled: %d (failed: %d)", result.FramesSampled, result.FramesFailed)
	if *extractOnly {
		return nil
	}
	log.Printf("Records written: %d -> %s", result.RecordsWritten, result.CSVPath)
	if result.TrackExported {
		log.Printf("Track exported: %s", result.GPXPath)
	} else {
		log.Printf("No track exported (no usable coordinates)")
	}
	return nil
}

// runExport rebuilds a GPX track from an existing telemetry CSV.
func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	csvPath := fs.String("csv", "", "path to a previously extracted telemetry CSV")
	fs.Parse(args)

	if *csvPath == "" {
		return fmt.Errorf("-csv is required")
	}
	if _, err := os.Stat(*csvPath); err != nil {
		return &errors.ProcessingError{
			Code:      errors.ErrorCSVMissing,
			Message:   fmt.Sprintf("CSV file not found: %s", *csvPath),
			Timestamp: time.Now(),
			Cause:     err,
		}
	}

	records, err := telemetry.ReadRecords(*csvPath)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(*csvPath), filepath.Ext(*csvPath))
	exporter := gpx.NewExporter(logging.NewLogger("gpx"))
	doc, err := exporter.Export(records, name)
	if err == gpx.ErrNoCoordinates {
		return errors.NewNoCoordinatesError("", len(records))
	}
	if err != nil {
		return err
	}

	gpxPath := strings.TrimSuffix(*csvPath, filepath.Ext(*csvPath)) + ".gpx"
	if err := exporter.Write(doc, gpxPath); err != nil {
		return err
	}
	log.Printf("Track exported: %s (%d points)", gpxPath, len(doc.Track.Segment.Points))
	return nil
}

// runEnqueue submits one video job to the worker queue instead of
// processing it in-process. The video path must be visible to the worker,
// so it is made absolute before it goes on the queue.
func runEnqueue(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	videoPath := fs.String("video", "", "path to the dashcam video file")
	start := fs.Duration("start", 0, "offset into the video to start sampling")
	duration := fs.Duration("duration", 0, "length of the window to sample, 0 for the rest")
	extractOnly := fs.Bool("extract-only", false, "sample frames only, skipping OCR and all outputs")
	redisURL := fs.String("redis", envOrDefault("REDIS_URL", "redis://localhost:6379"), "Redis connection URL")
	queueName := fs.String("queue", envOrDefault("QUEUE_NAME", "telemetry"), "worker queue name")
	fs.Parse(args)

	if *videoPath == "" {
		return fmt.Errorf("-video is required")
	}
	absPath, err := filepath.Abs(*videoPath)
	if err != nil {
		return fmt.Errorf("failed to resolve video path: %w", err)
	}

	enqueuer, err := queue.NewEnqueuer(*redisURL, *queueName)
	if err != nil {
		return err
	}
	defer enqueuer.Close()

	runID := uuid.NewString()
	taskID, err := enqueuer.Enqueue(context.Background(), &queue.VideoJob{
		RunID:       runID,
		VideoPath:   absPath,
		StartMs:     start.Milliseconds(),
		DurationMs:  duration.Milliseconds(),
		ExtractOnly: *extractOnly,
	})
	if err != nil {
		return err
	}
	log.Printf("Job enqueued: run=%s task=%s queue=%s", runID, taskID, *queueName)
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// signalContext returns a context cancelled by SIGINT/SIGTERM and bounded
// by the run timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal %v, cancelling run...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
