package telemetry

import "testing"

func testDefaults() Defaults {
	return Defaults{
		Date:      "2024-01-01",
		Latitude:  `38°0'0"N`,
		Longitude: `90°0'0"W`,
	}
}

func extractionSeq(partials []Partial) []Extraction {
	exs := make([]Extraction, len(partials))
	for i, p := range partials {
		exs[i] = Extraction{
			Filename:   "frame" + string(rune('A'+i)),
			FrameIndex: i,
			Fields:     p,
		}
	}
	return exs
}

func TestReconcileSpeedJumpRejected(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "30"},
		{Speed: "80"},
		{Speed: "31"},
	}))

	expected := []int{30, 30, 31}
	for i, rec := range records {
		if rec.SpeedMph != expected[i] {
			t.Errorf("record %d: SpeedMph = %d, expected %d", i, rec.SpeedMph, expected[i])
		}
	}
}

func TestReconcileSpeedDroppedLeadingDigit(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	// A 30, 3, 31 sequence means the middle frame lost its leading digit.
	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "30"},
		{Speed: "3"},
		{Speed: "31"},
	}))

	expected := []int{30, 30, 31}
	for i, rec := range records {
		if rec.SpeedMph != expected[i] {
			t.Errorf("record %d: SpeedMph = %d, expected %d", i, rec.SpeedMph, expected[i])
		}
	}
}

func TestReconcileSpeedRealBrakingAccepted(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	// The next frame agrees with the low reading, so this is braking,
	// not a dropped digit.
	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "30"},
		{Speed: "20"},
		{Speed: "12"},
	}))

	expected := []int{30, 20, 12}
	for i, rec := range records {
		if rec.SpeedMph != expected[i] {
			t.Errorf("record %d: SpeedMph = %d, expected %d", i, rec.SpeedMph, expected[i])
		}
	}
}

func TestReconcileSpeedZeroBaseline(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	// Pulling away from a standstill is always a jump of more than any
	// percentage threshold, so zero baselines accept any reading.
	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "0"},
		{Speed: "15"},
	}))

	if records[0].SpeedMph != 0 {
		t.Errorf("record 0: SpeedMph = %d, expected 0", records[0].SpeedMph)
	}
	if records[1].SpeedMph != 15 {
		t.Errorf("record 1: SpeedMph = %d, expected 15", records[1].SpeedMph)
	}
}

func TestReconcileSpeedAbsentDefaultsToZero(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{},
		{Speed: "5"},
	}))

	if records[0].SpeedMph != 0 {
		t.Errorf("record 0: SpeedMph = %d, expected 0", records[0].SpeedMph)
	}
	// The defaulted zero is a real baseline, so the next reading passes
	// under the zero exemption.
	if records[1].SpeedMph != 5 {
		t.Errorf("record 1: SpeedMph = %d, expected 5", records[1].SpeedMph)
	}
}

func TestReconcileSpeedAbsentCarriesForward(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "30"},
		{},
		{Speed: "31"},
	}))

	expected := []int{30, 30, 31}
	for i, rec := range records {
		if rec.SpeedMph != expected[i] {
			t.Errorf("record %d: SpeedMph = %d, expected %d", i, rec.SpeedMph, expected[i])
		}
	}
}

func TestReconcileDateLockIn(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Date: "2024-11-29"},
		{Date: "2024-11-28"},
		{},
	}))

	for i, rec := range records {
		if rec.Date != "2024-11-29" {
			t.Errorf("record %d: Date = %q, expected 2024-11-29", i, rec.Date)
		}
	}
}

func TestReconcileDateDefaultUntilValidated(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{},
		{Date: "2024-11-29"},
	}))

	if records[0].Date != "2024-01-01" {
		t.Errorf("record 0: Date = %q, expected the default", records[0].Date)
	}
	if records[1].Date != "2024-11-29" {
		t.Errorf("record 1: Date = %q, expected 2024-11-29", records[1].Date)
	}
}

func TestReconcileTimeEstimatedFromFrameIndex(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Time: "11:53:18"},
		{},
		{},
		{Time: "11:53:21"},
	}))

	expected := []string{"11:53:18", "11:53:19", "11:53:20", "11:53:21"}
	for i, rec := range records {
		if rec.Time != expected[i] {
			t.Errorf("record %d: Time = %q, expected %q", i, rec.Time, expected[i])
		}
	}
}

func TestReconcileTimeWrapsMidnight(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Time: "23:59:59"},
		{},
	}))

	if records[1].Time != "00:00:00" {
		t.Errorf("record 1: Time = %q, expected 00:00:00", records[1].Time)
	}
}

func TestReconcileTimeNoReadingEver(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{{}, {}, {}}))

	expected := []string{"00:00:00", "00:00:01", "00:00:02"}
	for i, rec := range records {
		if rec.Time != expected[i] {
			t.Errorf("record %d: Time = %q, expected %q", i, rec.Time, expected[i])
		}
	}
}

func TestReconcileCoordinatesPairOnly(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Latitude: `38°36'17"N`, Longitude: `90°32'52"W`},
		{Latitude: `38°36'18"N`}, // longitude unreadable, pair rejected
		{Latitude: `38°36'19"N`, Longitude: `90°32'54"W`},
	}))

	if records[1].Latitude != `38°36'17"N` || records[1].Longitude != `90°32'52"W` {
		t.Errorf("record 1 should carry the previous pair, got %q %q",
			records[1].Latitude, records[1].Longitude)
	}
	if records[2].Latitude != `38°36'19"N` || records[2].Longitude != `90°32'54"W` {
		t.Errorf("record 2 should take the fresh pair, got %q %q",
			records[2].Latitude, records[2].Longitude)
	}
}

func TestReconcileCoordinatesDefaultPair(t *testing.T) {
	r := NewReconciler(testDefaults(), 0, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Longitude: `90°32'52"W`}, // latitude missing, pair rejected
	}))

	if records[0].Latitude != `38°0'0"N` || records[0].Longitude != `90°0'0"W` {
		t.Errorf("record 0 should use both defaults, got %q %q",
			records[0].Latitude, records[0].Longitude)
	}
}

func TestReconcileCustomThreshold(t *testing.T) {
	// A 200 percent threshold lets a 30 to 80 jump through.
	r := NewReconciler(testDefaults(), 200, nil)

	records := r.ReconcileAll(extractionSeq([]Partial{
		{Speed: "30"},
		{Speed: "80"},
	}))

	if records[1].SpeedMph != 80 {
		t.Errorf("record 1: SpeedMph = %d, expected 80", records[1].SpeedMph)
	}
}
