package telemetry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/dashtrail/telemetry-worker/internal/logging"
)

/**
 * Temporal/Value Reconciler
 *
 * Turns the per-frame extraction results into one trustworthy record per
 * frame by validating each field and substituting the last validated value
 * (or a configured default) when extraction missed or produced something
 * implausible. Reconciliation is order-dependent: frames must pass through
 * in ascending temporal order.
 *
 * Assumption: a recording never crosses midnight. Once a date has been
 * validated, any different well-formed date is treated as an OCR error and
 * overridden.
 */

var canonicalDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DefaultMaxSpeedJumpPercent is the relative change between consecutive
// speed readings above which a reading is rejected as an OCR error.
const DefaultMaxSpeedJumpPercent = 50.0

// Reconciler validates extracted fields against carry-forward state.
// Reconcile never fails: every path terminates in a concrete value for
// every field.
type Reconciler struct {
	defaults            Defaults
	maxSpeedJumpPercent float64
	logger              *logging.Logger
}

// NewReconciler creates a reconciler seeded with caller-supplied defaults.
// maxSpeedJumpPercent <= 0 selects DefaultMaxSpeedJumpPercent.
func NewReconciler(defaults Defaults, maxSpeedJumpPercent float64, logger *logging.Logger) *Reconciler {
	if maxSpeedJumpPercent <= 0 {
		maxSpeedJumpPercent = DefaultMaxSpeedJumpPercent
	}
	if logger == nil {
		logger = logging.NewLogger("reconciler")
	}
	return &Reconciler{
		defaults:            defaults,
		maxSpeedJumpPercent: maxSpeedJumpPercent,
		logger:              logger,
	}
}

// ReconcileAll runs the second pass over buffered extractions, feeding each
// frame's successor in as lookahead for the dropped-digit speed correction.
func (r *Reconciler) ReconcileAll(extractions []Extraction) []Record {
	state := State{}
	records := make([]Record, 0, len(extractions))
	for i, ex := range extractions {
		var next *Partial
		if i+1 < len(extractions) {
			next = &extractions[i+1].Fields
		}
		var rec Record
		state, rec = r.Reconcile(state, ex, next)
		records = append(records, rec)
	}
	return records
}

// Reconcile validates one frame's extraction against the carried state and
// returns the updated state plus the frame's concrete record. next is the
// following frame's extraction, nil for the last frame.
func (r *Reconciler) Reconcile(state State, ex Extraction, next *Partial) (State, Record) {
	rec := Record{Filename: ex.Filename}

	state, rec.Date = r.reconcileDate(state, ex)
	state, rec.Time = r.reconcileTime(state, ex)
	state, rec.SpeedMph = r.reconcileSpeed(state, ex, next)
	state, rec.Latitude, rec.Longitude = r.reconcileCoordinates(state, ex)

	return state, rec
}

func (r *Reconciler) reconcileDate(state State, ex Extraction) (State, string) {
	d := ex.Fields.Date
	switch {
	case !canonicalDatePattern.MatchString(d):
		// absent or malformed, carry forward
	case state.Date == "":
		state.Date = d
		return state, d
	case d == state.Date:
		return state, d
	default:
		r.logger.Info("date mismatch overridden",
			"frame", ex.Filename, "read", d, "established", state.Date)
	}

	if state.Date != "" {
		return state, state.Date
	}
	return state, r.defaults.Date
}

func (r *Reconciler) reconcileTime(state State, ex Extraction) (State, string) {
	if t := ex.Fields.Time; t != "" {
		state.Time = t
		state.timeFrame = ex.FrameIndex
		return state, t
	}

	// Frames are sampled at one per second, so the clock advances with
	// the frame index from the last validated reading.
	if state.Time != "" {
		est := addClockSeconds(state.Time, ex.FrameIndex-state.timeFrame)
		r.logger.Info("time unreadable, estimated from frame index",
			"frame", ex.Filename, "estimate", est)
		return state, est
	}
	return state, clockFromSeconds(ex.FrameIndex)
}

func (r *Reconciler) reconcileSpeed(state State, ex Extraction, next *Partial) (State, int) {
	reading, err := strconv.Atoi(ex.Fields.Speed)
	if ex.Fields.Speed == "" || err != nil || reading < 0 {
		if state.HasSpeed {
			return state, state.Speed
		}
		// No reading and nothing carried: the vehicle is assumed
		// stationary until the overlay says otherwise.
		state.Speed = 0
		state.HasSpeed = true
		return state, 0
	}

	if !state.HasSpeed {
		state.Speed = reading
		state.HasSpeed = true
		return state, reading
	}

	// Percentage change from zero is undefined; any move off a standstill
	// is taken at face value.
	if state.Speed == 0 {
		state.Speed = reading
		return state, reading
	}

	// A single-digit reading between two similar double-digit readings is
	// a dropped leading digit, not a braking event.
	if reading < 10 && state.Speed >= 10 && next != nil {
		if nv, nerr := strconv.Atoi(next.Speed); nerr == nil && nv >= 10 &&
			relativeChange(nv, state.Speed) <= r.maxSpeedJumpPercent {
			r.logger.Info("dropped leading digit corrected",
				"frame", ex.Filename, "read", reading, "kept", state.Speed)
			return state, state.Speed
		}
	}

	if relativeChange(reading, state.Speed) > r.maxSpeedJumpPercent {
		r.logger.Info("implausible speed jump rejected",
			"frame", ex.Filename, "read", reading, "kept", state.Speed)
		return state, state.Speed
	}

	state.Speed = reading
	return state, reading
}

// reconcileCoordinates accepts latitude and longitude only as a pair
// extracted from the same frame; otherwise both are carried forward (or
// defaulted) together, so a record never mixes a fresh latitude with a
// stale longitude.
func (r *Reconciler) reconcileCoordinates(state State, ex Extraction) (State, string, string) {
	if ex.Fields.Latitude != "" && ex.Fields.Longitude != "" {
		state.Latitude = ex.Fields.Latitude
		state.Longitude = ex.Fields.Longitude
		return state, state.Latitude, state.Longitude
	}
	if state.Latitude != "" {
		return state, state.Latitude, state.Longitude
	}
	return state, r.defaults.Latitude, r.defaults.Longitude
}

func relativeChange(reading, baseline int) float64 {
	return math.Abs(float64(reading-baseline)) / float64(baseline) * 100
}

// addClockSeconds advances an HH:MM:SS clock, wrapping at midnight.
func addClockSeconds(clock string, seconds int) string {
	var h, m, s int
	if _, err := fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &s); err != nil {
		return clock
	}
	total := (h*3600 + m*60 + s + seconds) % 86400
	if total < 0 {
		total += 86400
	}
	return clockFromSeconds(total)
}

func clockFromSeconds(total int) string {
	total %= 86400
	if total < 0 {
		total += 86400
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
