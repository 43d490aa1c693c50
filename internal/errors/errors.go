package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the telemetry extraction worker
 *
 * Errors are split along the run lifecycle: startup preconditions abort the
 * whole run, per-frame failures are recoverable, export failures leave the
 * CSV intact but produce no track.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Startup/precondition errors (abort before any frame is processed)
	ErrorToolMissing  ErrorCode = "TOOL_MISSING"
	ErrorVideoMissing ErrorCode = "VIDEO_MISSING"

	// Per-frame recoverable errors (frame is skipped, run continues)
	ErrorFrameExtraction ErrorCode = "FRAME_EXTRACTION_FAILED"
	ErrorCropFailed      ErrorCode = "CROP_FAILED"
	ErrorOCRFailed       ErrorCode = "OCR_FAILED"

	// Export errors
	ErrorNoCoordinates ErrorCode = "EXPORT_NO_COORDINATES"
	ErrorCSVMissing    ErrorCode = "CSV_MISSING"

	// Infrastructure errors
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	RunID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewToolMissingError(tool string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorToolMissing,
		Message:   fmt.Sprintf("required external tool not found: %s", tool),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"tool": tool,
		},
		Cause: cause,
	}
}

func NewVideoMissingError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorVideoMissing,
		Message:   fmt.Sprintf("source video not found: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(runID string, frame string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed for frame: %s", frame),
		RunID:     runID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"frame": frame,
		},
		Cause: cause,
	}
}

func NewNoCoordinatesError(runID string, rows int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoCoordinates,
		Message:   "no rows with parseable coordinates, track export aborted",
		RunID:     runID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"rows_examined": rows,
		},
	}
}

func NewStorageFailedError(runID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "failed to archive telemetry records",
		RunID:     runID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(runID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("processing timed out after %v", duration),
		RunID:     runID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// ToMap converts error to map for status publishing
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
