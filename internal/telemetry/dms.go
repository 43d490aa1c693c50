package telemetry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// dmsValue matches a canonical DMS coordinate. The degree symbol may appear
// as the ASCII-safe "deg" substitute used in CSV output.
var dmsValue = regexp.MustCompile(`^(\d{1,3})(?:°|deg)(\d{1,2})'(\d{1,2}(?:\.\d+)?)"?([NSEW])$`)

// ParseDMS converts a DMS coordinate string to signed decimal degrees.
// South and West coordinates are negative.
func ParseDMS(s string) (float64, error) {
	m := dmsValue.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("not a DMS coordinate: %q", s)
	}

	deg, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid degrees in %q: %w", s, err)
	}
	min, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", s, err)
	}
	if min > 59 || sec >= 60 {
		return 0, fmt.Errorf("out-of-range minutes/seconds in %q", s)
	}

	dec := float64(deg) + float64(min)/60 + sec/3600
	if m[4] == "S" || m[4] == "W" {
		dec = -dec
	}
	return dec, nil
}

// FormatDMS renders decimal degrees as a canonical DMS string. Seconds are
// rounded to the nearest whole second, keeping round trips within 1/3600
// of a degree.
func FormatDMS(dec float64, isLatitude bool) string {
	var dir string
	switch {
	case isLatitude && dec < 0:
		dir = "S"
	case isLatitude:
		dir = "N"
	case dec < 0:
		dir = "W"
	default:
		dir = "E"
	}

	abs := math.Abs(dec)
	deg := int(abs)
	minF := (abs - float64(deg)) * 60
	min := int(minF)
	sec := int(math.Round((minF - float64(min)) * 60))

	// Carry rounded-up seconds into minutes and degrees
	if sec == 60 {
		sec = 0
		min++
	}
	if min == 60 {
		min = 0
		deg++
	}

	return fmt.Sprintf(`%d°%d'%d"%s`, deg, min, sec, dir)
}
