package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSinkDeduplicatesTimestamps(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(&buf)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	records := []Record{
		{Filename: "a.png", Date: "2024-11-29", Time: "11:53:18", SpeedMph: 30, Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Filename: "b.png", Date: "2024-11-29", Time: "11:53:18", SpeedMph: 31, Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Filename: "c.png", Date: "2024-11-29", Time: "11:53:19", SpeedMph: 31, Latitude: `38°36'18"N`, Longitude: `90°32'53"W`},
	}

	accepted := 0
	for _, rec := range records {
		ok, err := sink.Emit(rec)
		if err != nil {
			t.Fatalf("Emit: %v", err)
		}
		if ok {
			accepted++
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if accepted != 2 {
		t.Errorf("accepted = %d, expected 2", accepted)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Filename,Date,Time,Speed,Latitude,Longitude" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	// First-seen wins for a duplicated timestamp.
	if !strings.HasPrefix(lines[1], "a.png,") {
		t.Errorf("expected the first frame's row, got %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "c.png,") {
		t.Errorf("expected the third frame's row, got %s", lines[2])
	}
}

func TestSinkWritesAsciiCoordinates(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(&buf)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	rec := Record{
		Filename:  "a.png",
		Date:      "2024-11-29",
		Time:      "11:53:18",
		SpeedMph:  30,
		Latitude:  `38°36'17"N`,
		Longitude: `90°32'52"W`,
	}
	if _, err := sink.Emit(rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "°") {
		t.Errorf("CSV output contains a degree symbol: %s", out)
	}
	if !strings.Contains(out, `38deg36'17"N`) {
		t.Errorf("CSV output missing ASCII latitude: %s", out)
	}
}

func TestSinkRoundTripThroughReader(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(&buf)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	rec := Record{
		Filename:  "frame_000001.png",
		Date:      "2024-11-29",
		Time:      "11:53:18",
		SpeedMph:  30,
		Latitude:  `38°36'17"N`,
		Longitude: `90°32'52"W`,
	}
	if _, err := sink.Emit(rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	path := filepath.Join(t.TempDir(), "telemetry.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0] != rec {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", records[0], rec)
	}
}
