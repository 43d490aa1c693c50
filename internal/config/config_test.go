package config

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("FALLBACK_DATE", "2024-11-29")
	t.Setenv("FALLBACK_LATITUDE", `38°36'17"N`)
	t.Setenv("FALLBACK_LONGITUDE", `90°32'52"W`)
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.FrameRate != 1 {
		t.Errorf("FrameRate = %g, expected 1", cfg.FrameRate)
	}
	if cfg.BandHeight != 60 {
		t.Errorf("BandHeight = %d, expected 60", cfg.BandHeight)
	}
	if cfg.SpeedJumpPercent != 50 {
		t.Errorf("SpeedJumpPercent = %g, expected 50", cfg.SpeedJumpPercent)
	}
	if cfg.TesseractLang != "eng" {
		t.Errorf("TesseractLang = %q, expected eng", cfg.TesseractLang)
	}

	d := cfg.Defaults()
	if d.Date != "2024-11-29" || d.Latitude != `38°36'17"N` || d.Longitude != `90°32'52"W` {
		t.Errorf("unexpected defaults: %+v", d)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FRAME_RATE", "2")
	t.Setenv("BAND_HEIGHT", "90")
	t.Setenv("SPEED_JUMP_PERCENT", "75")
	t.Setenv("WORKER_CONCURRENCY", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.FrameRate != 2 || cfg.BandHeight != 90 || cfg.SpeedJumpPercent != 75 || cfg.WorkerConcurrency != 4 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigMissingFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing date", "FALLBACK_DATE"},
		{"missing latitude", "FALLBACK_LATITUDE"},
		{"missing longitude", "FALLBACK_LONGITUDE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected an error with %s unset", tt.unset)
			} else if !strings.Contains(err.Error(), tt.unset) {
				t.Errorf("error should name %s: %v", tt.unset, err)
			}
		})
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed date", "FALLBACK_DATE", "11/29/2024"},
		{"decimal latitude", "FALLBACK_LATITUDE", "38.6047"},
		{"decimal longitude", "FALLBACK_LONGITUDE", "-90.5477"},
		{"zero concurrency", "WORKER_CONCURRENCY", "0"},
		{"excessive frame rate", "FRAME_RATE", "120"},
		{"zero band height", "BAND_HEIGHT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected an error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
