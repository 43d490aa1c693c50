package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dashtrail/telemetry-worker/internal/frames"
	"github.com/dashtrail/telemetry-worker/internal/logging"
	"github.com/dashtrail/telemetry-worker/internal/ocr"
	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

// stubEngine returns canned OCR text per image basename.
type stubEngine struct {
	texts  map[string]string
	closed bool
}

func (s *stubEngine) Recognize(_ context.Context, imagePath string) (string, error) {
	return s.texts[filepath.Base(imagePath)], nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func testDefaults() telemetry.Defaults {
	return telemetry.Defaults{
		Date:      "2024-01-01",
		Latitude:  `38°0'0"N`,
		Longitude: `90°0'0"W`,
	}
}

func testProcessor(t *testing.T, engine *stubEngine) *VideoProcessor {
	t.Helper()
	p, err := NewVideoProcessor(&ProcessorConfig{
		Sampler:    frames.NewSampler("ffmpeg", 1, 0, nil),
		Cropper:    frames.NewCropper("identify", "convert", 60, 0, nil),
		Engines:    func() (ocr.Engine, error) { return engine, nil },
		Reconciler: telemetry.NewReconciler(testDefaults(), 0, logging.NewLogger("test")),
		TempDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewVideoProcessor: %v", err)
	}
	return p
}

func TestNewVideoProcessorValidation(t *testing.T) {
	if _, err := NewVideoProcessor(nil); err == nil {
		t.Error("expected an error for nil config")
	}
	if _, err := NewVideoProcessor(&ProcessorConfig{}); err == nil {
		t.Error("expected an error for missing collaborators")
	}
}

// TestProcessVideoOpensEngineEachRun uses a no-op stand-in for ffmpeg so
// two full runs can execute without any frames; each run must open its own
// OCR engine and close it when the run ends.
func TestProcessVideoOpensEngineEachRun(t *testing.T) {
	dir := t.TempDir()

	video := filepath.Join(dir, "trip.mp4")
	if err := os.WriteFile(video, []byte("video bytes"), 0644); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	ffmpeg := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	var opened []*stubEngine
	p, err := NewVideoProcessor(&ProcessorConfig{
		Sampler: frames.NewSampler(ffmpeg, 1, 0, nil),
		Cropper: frames.NewCropper("identify", "convert", 60, 0, nil),
		Engines: func() (ocr.Engine, error) {
			e := &stubEngine{}
			opened = append(opened, e)
			return e, nil
		},
		Reconciler: telemetry.NewReconciler(testDefaults(), 0, logging.NewLogger("test")),
		TempDir:    dir,
	})
	if err != nil {
		t.Fatalf("NewVideoProcessor: %v", err)
	}

	for _, runID := range []string{"run-a", "run-b"} {
		if _, err := p.ProcessVideo(context.Background(), &ProcessRequest{
			RunID:     runID,
			VideoPath: video,
		}); err != nil {
			t.Fatalf("ProcessVideo(%s): %v", runID, err)
		}
	}

	if len(opened) != 2 {
		t.Fatalf("engines opened = %d, expected one per run", len(opened))
	}
	for i, e := range opened {
		if !e.closed {
			t.Errorf("engine for run %d was not closed", i)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		video    string
		ext      string
		expected string
	}{
		{"/data/trip.mp4", ".csv", "/data/trip.csv"},
		{"/data/trip.mp4", ".gpx", "/data/trip.gpx"},
		{"/data/trip.final.MOV", ".csv", "/data/trip.final.csv"},
		{"relative/clip.avi", ".gpx", "relative/clip.gpx"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.video, tt.ext); got != tt.expected {
			t.Errorf("outputPath(%q, %q) = %q, expected %q", tt.video, tt.ext, got, tt.expected)
		}
	}
}

func TestWriteCSVDeduplicates(t *testing.T) {
	p := testProcessor(t, &stubEngine{})

	records := []telemetry.Record{
		{Filename: "a.png", Date: "2024-11-29", Time: "11:53:18", SpeedMph: 30, Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Filename: "b.png", Date: "2024-11-29", Time: "11:53:18", SpeedMph: 30, Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Filename: "c.png", Date: "2024-11-29", Time: "11:53:19", SpeedMph: 31, Latitude: `38°36'18"N`, Longitude: `90°32'53"W`},
	}

	path := filepath.Join(t.TempDir(), "trip.csv")
	written, err := p.writeCSV(path, records)
	if err != nil {
		t.Fatalf("writeCSV: %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, expected 2", written)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header plus 2 rows, got %d lines", len(lines))
	}
}

func TestExportTrackFromCSV(t *testing.T) {
	p := testProcessor(t, &stubEngine{})

	records := []telemetry.Record{
		{Filename: "a.png", Date: "2024-11-29", Time: "11:53:18", SpeedMph: 30, Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Filename: "b.png", Date: "2024-11-29", Time: "11:53:19", SpeedMph: 31, Latitude: `38°36'18"N`, Longitude: `90°32'53"W`},
	}

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trip.csv")
	if _, err := p.writeCSV(csvPath, records); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}

	gpxPath := filepath.Join(dir, "trip.gpx")
	if err := p.exportTrack(csvPath, gpxPath); err != nil {
		t.Fatalf("exportTrack: %v", err)
	}

	data, err := os.ReadFile(gpxPath)
	if err != nil {
		t.Fatalf("reading GPX: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`version="1.1"`,
		"<trkpt",
		"<wpt",
		"2024-11-29T11:53:18Z",
		"gpxtpx:speed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GPX output missing %q", want)
		}
	}
}

func TestExportTrackNoCoordinates(t *testing.T) {
	p := testProcessor(t, &stubEngine{})

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trip.csv")
	content := "Filename,Date,Time,Speed,Latitude,Longitude\n" +
		"a.png,2024-11-29,11:53:18,30,garbage,garbage\n"
	if err := os.WriteFile(csvPath, []byte(content), 0644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	gpxPath := filepath.Join(dir, "trip.gpx")
	if err := p.exportTrack(csvPath, gpxPath); err == nil {
		t.Fatal("expected an error for a track with no coordinates")
	}
	if _, err := os.Stat(gpxPath); !os.IsNotExist(err) {
		t.Error("no GPX file should be written without coordinates")
	}
}
