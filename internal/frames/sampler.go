/**
 * Frame Sampler - ffmpeg subprocess wrapper
 *
 * Samples a dashcam video into numbered still frames at a fixed rate
 * (default one per second, which matches the overlay clock resolution).
 * The frame interval is the unit the reconciler's time estimation counts
 * in, so the rate and the estimator must agree.
 */

package frames

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dashtrail/telemetry-worker/internal/errors"
	"github.com/dashtrail/telemetry-worker/internal/logging"
)

const framePattern = "frame_%06d.png"

var frameIndexPattern = regexp.MustCompile(`frame_(\d+)\.png$`)

// Sampler extracts still frames from video files via ffmpeg.
type Sampler struct {
	ffmpegPath  string
	frameRate   float64
	toolTimeout time.Duration
	logger      *logging.Logger
}

// NewSampler creates a sampler. frameRate <= 0 selects one frame per
// second; toolTimeout <= 0 disables the subprocess deadline.
func NewSampler(ffmpegPath string, frameRate float64, toolTimeout time.Duration, logger *logging.Logger) *Sampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if frameRate <= 0 {
		frameRate = 1
	}
	if logger == nil {
		logger = logging.NewLogger("sampler")
	}
	return &Sampler{
		ffmpegPath:  ffmpegPath,
		frameRate:   frameRate,
		toolTimeout: toolTimeout,
		logger:      logger,
	}
}

// Frame is one sampled still, ordered by Index.
type Frame struct {
	Path  string
	Index int
}

// Sample extracts frames from videoPath into outputDir and returns them in
// ascending index order. start and duration bound the sampled window; zero
// values mean the whole recording.
func (s *Sampler) Sample(ctx context.Context, videoPath, outputDir string, start, duration time.Duration) ([]Frame, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, errors.NewVideoMissingError(videoPath, err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}

	args := []string{"-v", "error"}
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start))
	}
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", s.frameRate),
		filepath.Join(outputDir, framePattern),
	)

	s.logger.Info("sampling frames", "video", videoPath, "fps", s.frameRate)
	if out, err := runTool(ctx, s.toolTimeout, s.ffmpegPath, args...); err != nil {
		return nil, &errors.ProcessingError{
			Code:      errors.ErrorFrameExtraction,
			Message:   fmt.Sprintf("ffmpeg failed for %s: %s", videoPath, strings.TrimSpace(out)),
			Timestamp: time.Now(),
			Cause:     err,
		}
	}

	return listFrames(outputDir)
}

// listFrames collects the sampled stills in index order.
func listFrames(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frame directory: %w", err)
	}

	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok := parseFrameIndex(entry.Name())
		if !ok {
			continue
		}
		frames = append(frames, Frame{
			Path:  filepath.Join(dir, entry.Name()),
			Index: idx,
		})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}

// parseFrameIndex recovers a frame's sequence number from its filename.
// ffmpeg numbers from 1; the pipeline counts seconds from 0.
func parseFrameIndex(name string) (int, bool) {
	m := frameIndexPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// runTool executes one external tool invocation under an optional deadline,
// returning its combined output for error reporting.
func runTool(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// CheckTools verifies that every external binary the pipeline shells out to
// is present on PATH (or at its configured absolute path).
func CheckTools(paths ...string) error {
	for _, p := range paths {
		if _, err := exec.LookPath(p); err != nil {
			return errors.NewToolMissingError(p, err)
		}
	}
	return nil
}
