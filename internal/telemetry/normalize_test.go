package telemetry

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "mis-encoded degree symbol",
			input:    `38Â°36'17"N`,
			expected: `38°36'17"N`,
		},
		{
			name:     "smart double quotes",
			input:    `38°36'17″N 90°32'52”W`,
			expected: `38°36'17"N 90°32'52"W`,
		},
		{
			name:     "smart single quotes",
			input:    "38°36’17\"N 90°32′52\"W",
			expected: `38°36'17"N 90°32'52"W`,
		},
		{
			name:     "backtick as apostrophe",
			input:    "11`53`18",
			expected: "11'53'18",
		},
		{
			name:     "compass trailing junk",
			input:    `38°36'17"N~~ 90°32'52"W _`,
			expected: `38°36'17"N 90°32'52"W`,
		},
		{
			name:     "letter o between digits",
			input:    "2o24-11-29",
			expected: "2024-11-29",
		},
		{
			name:     "cascading o between digits",
			input:    "1o2o3",
			expected: "10203",
		},
		{
			name:     "isolated o as zero",
			input:    "speed o mph",
			expected: "speed 0 mph",
		},
		{
			name:     "isolated o exposed by line break collapse",
			input:    "1\no\n2",
			expected: "1 0 2",
		},
		{
			name:     "repeated compass junk runs",
			input:    "N ~~ ~",
			expected: "N",
		},
		{
			name:     "line breaks collapse to spaces",
			input:    "2024-11-29\n11:53:18\r\n30 mph",
			expected: "2024-11-29 11:53:18 30 mph",
		},
		{
			name:     "leading and trailing whitespace trimmed",
			input:    "  30 mph  ",
			expected: "30 mph",
		},
		{
			name:     "clean text untouched",
			input:    `2024-11-29 11:53:18 30 mph 38°36'17"N 90°32'52"W`,
			expected: `2024-11-29 11:53:18 30 mph 38°36'17"N 90°32'52"W`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`38Â°36'17″N~~ 90°32′52”W`,
		"2o24-11-29 11`53`18",
		"1o2o3o4 speed o mph",
		"\r\n  mixed \n noise Â° here ",
		"1\no\n2",
		"N ~~ ~",
		`38°36'17"N ~~ ~_ 90°32'52"W`,
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
