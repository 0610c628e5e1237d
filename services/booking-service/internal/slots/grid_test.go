package slots

import (
	"testing"
	"time"
)

var shanghai = time.FixedZone("CST", 8*3600)

func mustGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid(shanghai, DefaultStep, DefaultWindows())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func TestDefaultLabels(t *testing.T) {
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "15:00", "15:30", "16:00", "16:30"}
	got := mustGrid(t).Labels()
	if len(got) != len(want) {
		t.Fatalf("expected %d labels, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestLabelUsesReferenceZone(t *testing.T) {
	g := mustGrid(t)
	// 01:30 UTC is 09:30 in UTC+8.
	label, ok := g.Label(time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC))
	if !ok || label != "09:30" {
		t.Fatalf("expected 09:30, got %q %v", label, ok)
	}
}

func TestLabelRejectsOffGrid(t *testing.T) {
	g := mustGrid(t)
	for _, instant := range []time.Time{
		time.Date(2026, 3, 2, 9, 15, 0, 0, shanghai),
		time.Date(2026, 3, 2, 9, 0, 1, 0, shanghai),
		time.Date(2026, 3, 2, 12, 0, 0, 0, shanghai),
		time.Date(2026, 3, 2, 13, 0, 0, 0, shanghai),
		time.Date(2026, 3, 2, 17, 0, 0, 0, shanghai),
	} {
		if label, ok := g.Label(instant); ok {
			t.Fatalf("%s should be off grid, got %s", instant, label)
		}
	}
}

func TestInstantRoundTrip(t *testing.T) {
	g := mustGrid(t)
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	for _, label := range g.Labels() {
		at, err := g.Instant(d, label)
		if err != nil {
			t.Fatalf("Instant(%s): %v", label, err)
		}
		back, ok := g.Label(at)
		if !ok || back != label {
			t.Fatalf("round trip %s -> %s (%v)", label, back, ok)
		}
		if g.DateOf(at) != d {
			t.Fatalf("date drift for %s: %s", label, g.DateOf(at))
		}
	}
	if _, err := g.Instant(d, "12:00"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestDayBounds(t *testing.T) {
	g := mustGrid(t)
	start, end := g.DayBounds(Date{Year: 2026, Month: 12, Day: 31})
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("unexpected day length %s", end.Sub(start))
	}
	if !start.Equal(time.Date(2026, 12, 30, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start.UTC())
	}
}

func TestParseWindows(t *testing.T) {
	ws, err := ParseWindows("08:00-10:00, 14:00-15:00")
	if err != nil {
		t.Fatalf("ParseWindows: %v", err)
	}
	g, err := NewGrid(time.UTC, time.Hour, ws)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if got := g.Labels(); len(got) != 3 || got[2] != "14:00" {
		t.Fatalf("unexpected labels %v", got)
	}
	if _, err := ParseWindows("nonsense"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewGrid(time.UTC, DefaultStep, []Window{{Start: 9 * time.Hour, End: 10 * time.Hour}, {Start: 9*time.Hour + 30*time.Minute, End: 11 * time.Hour}}); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestNewGridRejectsBadWindows(t *testing.T) {
	cases := []struct {
		name string
		w    Window
	}{
		{"inverted", Window{Start: 11 * time.Hour, End: 9 * time.Hour}},
		{"empty", Window{Start: 9 * time.Hour, End: 9 * time.Hour}},
		{"past midnight", Window{Start: 23 * time.Hour, End: 25 * time.Hour}},
	}
	for _, tc := range cases {
		if _, err := NewGrid(time.UTC, DefaultStep, []Window{tc.w}); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestDateAddDays(t *testing.T) {
	if got := (Date{Year: 2026, Month: 2, Day: 28}).AddDays(1).String(); got != "2026-03-01" {
		t.Fatalf("unexpected %s", got)
	}
}
