/**
 * Telemetry Worker - Main Entry Point
 *
 * Go worker for dashcam telemetry extraction.
 *
 * Architecture:
 * - Asynq consumer for Redis-backed video job queue
 * - Per-video pipeline: ffmpeg sampling, overlay band cropping,
 *   Tesseract OCR, extraction, reconciliation
 * - CSV and GPX 1.1 output next to each source video
 * - Optional PostgreSQL archive for runs and records
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dashtrail/telemetry-worker/internal/config"
	"github.com/dashtrail/telemetry-worker/internal/frames"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/ocr"
	"github.com/dashtrail/telemetry-worker/internal/processor"
	"github.com/dashtrail/telemetry-worker/internal/queue"
	"github.com/dashtrail/telemetry-worker/internal/storage"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.telemetry"); err != nil {
		log.Printf("Warning: .env.telemetry not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Telemetry worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Queue=%s, Workers=%d, FrameRate=%g",
		cfg.RedisURL, cfg.QueueName, cfg.WorkerConcurrency, cfg.FrameRate)

	// Fail fast on missing external collaborators
	if err := frames.CheckTools(cfg.FFmpegPath, cfg.IdentifyPath, cfg.ConvertPath); err != nil {
		log.Fatalf("External tool check failed: %v", err)
	}
	if err := ocr.Check(); err != nil {
		log.Fatalf("OCR check failed: %v", err)
	}
	log.Printf("External tools verified (ffmpeg, identify, convert, tesseract)")

	// Optional archive
	var store *storage.TelemetryStore
	if cfg.DatabaseURL != "" {
		store, err = storage.NewTelemetryStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to archive database: %v", err)
		}
		defer store.Close()
		log.Printf("Archive database connected")
	} else {
		log.Printf("No DATABASE_URL configured, runs will not be archived")
	}

	proc, err := processor.NewVideoProcessor(&processor.ProcessorConfig{
		Sampler:    frames.NewSampler(cfg.FFmpegPath, cfg.FrameRate, cfg.ToolTimeoutDuration(), logging.NewLogger("sampler")),
		Cropper:    frames.NewCropper(cfg.IdentifyPath, cfg.ConvertPath, cfg.BandHeight, cfg.ToolTimeoutDuration(), logging.NewLogger("cropper")),
		Engines:    ocr.TesseractFactory(ocr.Config{Language: cfg.TesseractLang}),
		Reconciler: telemetry.NewReconciler(cfg.Defaults(), cfg.SpeedJumpPercent, logging.NewLogger("reconciler")),
		TempDir:    cfg.TempDir,
		Store:      store,
	})
	if err != nil {
		log.Fatalf("Failed to initialize video processor: %v", err)
	}
	log.Printf("Video processor initialized")

	status, err := queue.NewStatusPublisher(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize status publisher: %v", err)
	}
	defer status.Close()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		Status:            status,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Telemetry worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Frame rate: %g fps", cfg.FrameRate)
	log.Printf("Band height: %dpx", cfg.BandHeight)
	log.Printf("Speed jump threshold: %g%%", cfg.SpeedJumpPercent)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Printf("Telemetry worker stopped")
}
