package telemetry

import (
	"regexp"
	"strings"
)

/**
 * Text Normalizer
 *
 * Cleans raw OCR text of encoding artifacts, smart-quote variants, and the
 * character confusions Tesseract commonly produces against the overlay font,
 * before any field extraction runs. Normalize is idempotent.
 */

var (
	// Curly/smart punctuation that the overlay's straight marks get
	// misread as.
	smartDoubleQuotes = []string{"“", "”", "„", "″"}
	smartSingleQuotes = []string{"‘", "’", "‚", "′", "`", "´"}

	// Tilde/underscore noise trailing a compass direction letter.
	compassTrailingJunk = regexp.MustCompile(`([NSEW]) ?[~_]+`)

	// Letter o misread for digit zero between digits or standing alone.
	digitOhDigit = regexp.MustCompile(`(\d)o(\d)`)
	isolatedOh   = regexp.MustCompile(` [oO] `)

	lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// Normalize cleans one frame's raw OCR output into a single trimmed line.
// Rules run in a fixed order and are all unconditional substitutions, so
// Normalize(Normalize(s)) == Normalize(s) for every input.
func Normalize(raw string) string {
	// Mis-encoded degree symbol (UTF-8 read back as Latin-1)
	s := strings.ReplaceAll(raw, "Â°", "°")

	for _, q := range smartDoubleQuotes {
		s = strings.ReplaceAll(s, q, `"`)
	}
	for _, q := range smartSingleQuotes {
		s = strings.ReplaceAll(s, q, "'")
	}

	// Collapse line breaks ahead of the space-sensitive rules below, so a
	// break never hides a window those rules would match on flat text.
	s = lineBreaks.Replace(s)

	// Re-apply until stable: a replacement can expose a new window the
	// non-overlapping scan skipped.
	s = replaceUntilStable(compassTrailingJunk, s, "$1")
	s = replaceUntilStable(digitOhDigit, s, "${1}0${2}")
	s = replaceUntilStable(isolatedOh, s, " 0 ")

	return strings.TrimSpace(s)
}

func replaceUntilStable(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}
