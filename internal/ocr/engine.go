/**
 * OCR Engine - overlay text recognition
 *
 * Wraps Tesseract behind a small interface so the processor (and its tests)
 * never talk to the OCR library directly. The overlay band is a single line
 * of fixed-font text, so the engine runs in single-line segmentation mode.
 */

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes the text in one cropped overlay band image.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
	Close() error
}

// EngineFactory opens a fresh Engine. The Tesseract client is not safe for
// concurrent use, so anything processing videos in parallel opens one
// engine per run through a factory instead of sharing an instance.
type EngineFactory func() (Engine, error)

// TesseractFactory returns a factory producing TesseractEngines with the
// given configuration.
func TesseractFactory(cfg Config) EngineFactory {
	return func() (Engine, error) {
		return NewTesseractEngine(cfg)
	}
}

// Config holds Tesseract tuning for the overlay font.
type Config struct {
	// Language is the trained data set name, e.g. "eng".
	Language string
}

// TesseractEngine is the production Engine backed by a persistent Tesseract
// client. Not safe for concurrent use; give each worker its own instance.
type TesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractEngine creates a configured Tesseract client. The client is
// reused across frames, which keeps the per-frame cost to one recognition
// pass instead of one process spawn.
func NewTesseractEngine(cfg Config) (*TesseractEngine, error) {
	client := gosseract.NewClient()

	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language %q: %w", lang, err)
	}
	// The cropped band is one line of overlay text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractEngine{client: client}, nil
}

// Recognize runs OCR against one image file and returns the raw text.
// The context is checked before the (uninterruptible) recognition call.
func (t *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := t.client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image %s: %w", imagePath, err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed for %s: %w", imagePath, err)
	}
	return text, nil
}

// Close releases the Tesseract client.
func (t *TesseractEngine) Close() error {
	return t.client.Close()
}

// Check verifies that a working Tesseract installation with at least one
// trained language is present. Called once at startup so a missing
// installation fails fast instead of failing on the first frame.
func Check() error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("tesseract is not available: %w", err)
	}
	if len(langs) == 0 {
		return fmt.Errorf("tesseract has no trained languages installed")
	}
	return nil
}
