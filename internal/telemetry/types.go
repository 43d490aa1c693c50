/**
 * Core types for the telemetry reconciliation pipeline
 *
 * One Record per distinct overlay timestamp, assembled from noisy per-frame
 * OCR text by the extractor and reconciler.
 */

package telemetry

// Record is the reconciled per-timestamp output row.
type Record struct {
	// Filename identifies the source frame the row was taken from.
	Filename string
	// Date in YYYY-MM-DD form.
	Date string
	// Time in HH:MM:SS form.
	Time string
	// SpeedMph is the overlay speed reading, never negative.
	SpeedMph int
	// Latitude in DMS form, e.g. 38°36'17"N.
	Latitude string
	// Longitude in DMS form, e.g. 90°32'52"W.
	Longitude string
}

// Partial holds the per-field extraction result for one frame's OCR text.
// An empty string means the field was absent or unmatched; absence is the
// only failure signal extraction produces.
type Partial struct {
	Date      string
	Time      string
	Speed     string
	Latitude  string
	Longitude string
}

// Extraction pairs a frame with its extracted fields, buffered so the
// reconciler can look one frame ahead without re-running OCR.
type Extraction struct {
	Filename   string
	FrameIndex int
	Fields     Partial
}

// State carries the last validated value per field across a frame sequence.
// The zero State starts a fresh run; state never outlives one video.
type State struct {
	Date      string
	Time      string
	Speed     int
	HasSpeed  bool
	Latitude  string
	Longitude string

	// timeFrame is the frame index at which Time was last validated,
	// used to estimate clock values for frames with unreadable time.
	timeFrame int
}

// Defaults supplies the carry-forward seeds used before any field has been
// validated. These come from configuration, never from constants burned into
// the pipeline.
type Defaults struct {
	Date      string
	Latitude  string
	Longitude string
}
