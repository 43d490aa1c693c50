package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVHeader is the column layout of the per-video telemetry CSV.
var CSVHeader = []string{"Filename", "Date", "Time", "Speed", "Latitude", "Longitude"}

// Sink writes reconciled records as CSV rows, at most one row per distinct
// (date, time) key, in first-seen order. Degree symbols are replaced with
// the literal "deg" so the CSV stays ASCII-safe for downstream tools.
type Sink struct {
	w    *csv.Writer
	seen map[string]struct{}
}

// NewSink wraps a writer and emits the header row immediately.
func NewSink(w io.Writer) (*Sink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return &Sink{
		w:    cw,
		seen: make(map[string]struct{}),
	}, nil
}

// Emit appends one row for the record unless its timestamp has already been
// written this run. Returns true if the row was accepted.
func (s *Sink) Emit(rec Record) (bool, error) {
	key := rec.Date + " " + rec.Time
	if _, dup := s.seen[key]; dup {
		return false, nil
	}
	s.seen[key] = struct{}{}

	row := []string{
		rec.Filename,
		rec.Date,
		rec.Time,
		fmt.Sprintf("%d", rec.SpeedMph),
		asciiCoordinate(rec.Latitude),
		asciiCoordinate(rec.Longitude),
	}
	if err := s.w.Write(row); err != nil {
		return false, fmt.Errorf("failed to write CSV row: %w", err)
	}
	return true, nil
}

// Flush drains buffered rows to the underlying writer.
func (s *Sink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

func asciiCoordinate(dms string) string {
	return strings.ReplaceAll(dms, "°", "deg")
}
