package telemetry

import (
	"fmt"
	"regexp"
	"strconv"
)

/**
 * Field Extractor
 *
 * Pulls date, time, speed and DMS coordinates out of normalized overlay
 * text. Each field is served by an ordered chain of strategies; the first
 * strategy that matches wins, and an exhausted chain leaves the field
 * absent. Extraction never fails: absence is resolved by the reconciler.
 */

// fieldStrategy attempts one pattern against the normalized text (and the
// frame filename, for derivation fallbacks). It returns the canonical field
// value, or "" if it does not apply.
type fieldStrategy func(text, filename string) string

var (
	dateDashed  = regexp.MustCompile(`(\d{4})[-/.](\d{2})[-/.](\d{2})`)
	dateShort   = regexp.MustCompile(`\b(\d{2})[-/.](\d{2})[-/.](\d{2,4})`)
	dateQuoted  = regexp.MustCompile(`(\d{4})['"](\d{2})['"](\d{2})`)
	dateInName  = regexp.MustCompile(`(\d{8})`)
	clockColons = regexp.MustCompile(`\b(\d{1,2}):(\d{2}):(\d{2})\b`)
	clockLoose  = regexp.MustCompile(`\b(\d{1,2})[:.;](\d{2})[:.;](\d{2})\b`)
	speedUnit   = regexp.MustCompile(`(?i)\b(\d+)\s*(?:mph|km/?h)\b`)
	speedOhUnit = regexp.MustCompile(`(?i)\b[oO]\s*(?:mph|km/?h)\b`)
	speedLoose  = regexp.MustCompile(`(?i)\b(\d+)\b.*?(?:mph|km/?h)`)

	// DMS with the marks OCR actually produces: minute mark as
	// quote/apostrophe/degree, second mark optional.
	dmsLat      = regexp.MustCompile(`(\d{1,3})°(\d{1,2})['"°](\d{1,2}(?:\.\d+)?)["']?\s*([NS])\b`)
	dmsLon      = regexp.MustCompile(`(\d{1,3})°(\d{1,2})['"°](\d{1,2}(?:\.\d+)?)["']?\s*([EW])\b`)
	dmsCombined = regexp.MustCompile(`(\d{1,3})°(\d{1,2})['"°](\d{1,2}(?:\.\d+)?)["']?\s*([NS])\s+(\d{1,3})°(\d{1,2})['"°](\d{1,2}(?:\.\d+)?)["']?\s*([EW])`)
)

// Extract applies every field chain to one frame's normalized text.
func Extract(text, frameFilename string) Partial {
	p := Partial{
		Date:  firstMatch(dateStrategies, text, frameFilename),
		Time:  firstMatch(timeStrategies, text, frameFilename),
		Speed: firstMatch(speedStrategies, text, frameFilename),
	}
	p.Latitude, p.Longitude = extractCoordinates(text)
	return p
}

func firstMatch(chain []fieldStrategy, text, filename string) string {
	for _, s := range chain {
		if v := s(text, filename); v != "" {
			return v
		}
	}
	return ""
}

var dateStrategies = []fieldStrategy{
	func(text, _ string) string {
		if m := dateDashed.FindStringSubmatch(text); m != nil {
			return canonicalDate(m[1], m[2], m[3])
		}
		return ""
	},
	func(text, _ string) string {
		if m := dateShort.FindStringSubmatch(text); m != nil {
			// Two-digit year; overlay recordings are this century.
			// A day longer than two digits carries OCR tail noise.
			return canonicalDate("20"+m[1], m[2], m[3][:2])
		}
		return ""
	},
	func(text, _ string) string {
		if m := dateQuoted.FindStringSubmatch(text); m != nil {
			return canonicalDate(m[1], m[2], m[3])
		}
		return ""
	},
	func(_, filename string) string {
		if m := dateInName.FindStringSubmatch(filename); m != nil {
			return canonicalDate(m[1][:4], m[1][4:6], m[1][6:8])
		}
		return ""
	},
}

var timeStrategies = []fieldStrategy{
	func(text, _ string) string {
		if m := clockColons.FindStringSubmatch(text); m != nil {
			return canonicalClock(m[1], m[2], m[3])
		}
		return ""
	},
	func(text, _ string) string {
		if m := clockLoose.FindStringSubmatch(text); m != nil {
			return canonicalClock(m[1], m[2], m[3])
		}
		return ""
	},
}

var speedStrategies = []fieldStrategy{
	func(text, _ string) string {
		if m := speedUnit.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return ""
			}
			return strconv.Itoa(n)
		}
		return ""
	},
	func(text, _ string) string {
		if speedOhUnit.MatchString(text) {
			return "0"
		}
		return ""
	},
	func(text, _ string) string {
		if m := speedLoose.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		return ""
	},
}

// extractCoordinates tries the combined latitude+longitude pattern first,
// then the two independently. Values are rebuilt into canonical DMS form
// regardless of which mark variant was present in the text.
func extractCoordinates(text string) (lat, lon string) {
	if m := dmsCombined.FindStringSubmatch(text); m != nil {
		return canonicalDMS(m[1], m[2], m[3], m[4]), canonicalDMS(m[5], m[6], m[7], m[8])
	}
	if m := dmsLat.FindStringSubmatch(text); m != nil {
		lat = canonicalDMS(m[1], m[2], m[3], m[4])
	}
	if m := dmsLon.FindStringSubmatch(text); m != nil {
		lon = canonicalDMS(m[1], m[2], m[3], m[4])
	}
	return lat, lon
}

func canonicalDate(year, month, day string) string {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

func canonicalClock(hour, minute, second string) string {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	s, _ := strconv.Atoi(second)
	if h > 23 || m > 59 || s > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func canonicalDMS(deg, min, sec, dir string) string {
	d, _ := strconv.Atoi(deg)
	m, _ := strconv.Atoi(min)
	return fmt.Sprintf(`%d°%d'%s"%s`, d, m, sec, dir)
}
