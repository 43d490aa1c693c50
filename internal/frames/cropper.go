/**
 * Band Cropper - ImageMagick subprocess wrapper
 *
 * Cuts the metadata overlay band off the bottom of each sampled frame
 * before OCR. Cropping first keeps Tesseract away from the scene content,
 * which otherwise contributes most of the recognition noise.
 *
 * A Cropper holds no per-video state and is safe for concurrent use. All
 * frames of one video share a geometry, so callers probe it once per run
 * and pass it to every Crop.
 */

package frames

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/logging"
)

// DefaultBandHeight is the overlay strip height in pixels for the common
// 1080p dashcam layout.
const DefaultBandHeight = 60

// Geometry is one video's frame pixel dimensions.
type Geometry struct {
	Width  int
	Height int
}

// Cropper extracts the overlay band from frame images.
type Cropper struct {
	identifyPath string
	convertPath  string
	bandHeight   int
	toolTimeout  time.Duration
	logger       *logging.Logger
}

// NewCropper creates a cropper. bandHeight <= 0 selects DefaultBandHeight;
// toolTimeout <= 0 disables the subprocess deadline.
func NewCropper(identifyPath, convertPath string, bandHeight int, toolTimeout time.Duration, logger *logging.Logger) *Cropper {
	if identifyPath == "" {
		identifyPath = "identify"
	}
	if convertPath == "" {
		convertPath = "convert"
	}
	if bandHeight <= 0 {
		bandHeight = DefaultBandHeight
	}
	if logger == nil {
		logger = logging.NewLogger("cropper")
	}
	return &Cropper{
		identifyPath: identifyPath,
		convertPath:  convertPath,
		bandHeight:   bandHeight,
		toolTimeout:  toolTimeout,
		logger:       logger,
	}
}

// Probe reads one frame's pixel dimensions via identify.
func (c *Cropper) Probe(ctx context.Context, framePath string) (Geometry, error) {
	out, err := runTool(ctx, c.toolTimeout, c.identifyPath,
		"-format", "%w %h", framePath)
	if err != nil {
		return Geometry{}, &errors.ProcessingError{
			Code:      errors.ErrorCropFailed,
			Message:   fmt.Sprintf("identify failed for %s: %s", framePath, strings.TrimSpace(out)),
			Timestamp: time.Now(),
			Cause:     err,
		}
	}

	var g Geometry
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%d %d", &g.Width, &g.Height); err != nil || g.Width <= 0 || g.Height <= 0 {
		return Geometry{}, &errors.ProcessingError{
			Code:      errors.ErrorCropFailed,
			Message:   fmt.Sprintf("unparseable identify output for %s: %q", framePath, out),
			Timestamp: time.Now(),
			Cause:     err,
		}
	}
	c.logger.Debug("frame geometry probed", "width", g.Width, "height", g.Height)
	return g, nil
}

// Crop writes the bottom overlay band of framePath to outputPath, using
// the geometry probed from the same video's frames.
func (c *Cropper) Crop(ctx context.Context, framePath, outputPath string, g Geometry) error {
	if g.Width <= 0 || g.Height <= 0 {
		return &errors.ProcessingError{
			Code:      errors.ErrorCropFailed,
			Message:   fmt.Sprintf("invalid frame geometry %dx%d for %s", g.Width, g.Height, framePath),
			Timestamp: time.Now(),
		}
	}

	out, err := runTool(ctx, c.toolTimeout, c.convertPath,
		framePath, "-crop", cropGeometry(g, c.bandHeight), "+repage", outputPath)
	if err != nil {
		return &errors.ProcessingError{
			Code:      errors.ErrorCropFailed,
			Message:   fmt.Sprintf("convert failed for %s: %s", framePath, strings.TrimSpace(out)),
			Timestamp: time.Now(),
			Cause:     err,
		}
	}
	return nil
}

// cropGeometry builds the ImageMagick crop expression for the bottom band,
// clamping the band to the frame height.
func cropGeometry(g Geometry, band int) string {
	if band > g.Height {
		band = g.Height
	}
	return fmt.Sprintf("%dx%d+0+%d", g.Width, band, g.Height-band)
}
