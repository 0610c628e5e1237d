package slots

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DefaultStep = 30 * time.Minute

// Window is a daily booking window as offsets from local midnight,
// half-open [Start, End).
type Window struct {
	Start time.Duration
	End   time.Duration
}

// DefaultWindows is the storefront's morning and afternoon service hours.
func DefaultWindows() []Window {
	return []Window{
		{Start: 9 * time.Hour, End: 12 * time.Hour},
		{Start: 15 * time.Hour, End: 17 * time.Hour},
	}
}

// ParseWindows reads "09:00-12:00,15:00-17:00".
func ParseWindows(raw string) ([]Window, error) {
	var out []Window
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("window %q: expected HH:MM-HH:MM", part)
		}
		start, err := parseClock(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", part, err)
		}
		end, err := parseClock(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", part, err)
		}
		out = append(out, Window{Start: start, End: end})
	}
	if len(out) == 0 {
		return nil, errors.New("no windows configured")
	}
	return out, nil
}

// Grid maps absolute instants to canonical slot labels in one reference
// location. Every caller must share the same Grid or counts disagree.
type Grid struct {
	loc     *time.Location
	step    time.Duration
	labels  []string
	offsets map[string]time.Duration
}

func NewGrid(loc *time.Location, step time.Duration, windows []Window) (*Grid, error) {
	if loc == nil {
		return nil, errors.New("location required")
	}
	if step <= 0 {
		return nil, errors.New("step must be positive")
	}
	g := &Grid{loc: loc, step: step, offsets: map[string]time.Duration{}}
	for _, w := range windows {
		if w.Start < 0 || w.End > 24*time.Hour || w.End <= w.Start {
			return nil, fmt.Errorf("invalid window %s-%s", formatClock(w.Start), formatClock(w.End))
		}
		for t := w.Start; t+step <= w.End; t += step {
			label := formatClock(t)
			if _, dup := g.offsets[label]; dup {
				return nil, fmt.Errorf("windows overlap at %s", label)
			}
			g.offsets[label] = t
			g.labels = append(g.labels, label)
		}
	}
	if len(g.labels) == 0 {
		return nil, errors.New("grid has no slots")
	}
	return g, nil
}

func (g *Grid) Location() *time.Location { return g.loc }

func (g *Grid) Step() time.Duration { return g.step }

// Labels returns every slot label in day order.
func (g *Grid) Labels() []string {
	return append([]string(nil), g.labels...)
}

func (g *Grid) Valid(label string) bool {
	_, ok := g.offsets[label]
	return ok
}

// Label returns the slot an instant starts, or false when the instant is
// not exactly on a bucket boundary of the grid.
func (g *Grid) Label(instant time.Time) (string, bool) {
	local := instant.In(g.loc)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return "", false
	}
	label := fmt.Sprintf("%02d:%02d", local.Hour(), local.Minute())
	if !g.Valid(label) {
		return "", false
	}
	return label, true
}

// Instant is the absolute time of label on the civil date d.
func (g *Grid) Instant(d Date, label string) (time.Time, error) {
	off, ok := g.offsets[label]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown slot label %q", label)
	}
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return time.Date(d.Year, d.Month, d.Day, h, m, 0, 0, g.loc), nil
}

// DateOf is the civil date of instant in the reference location.
func (g *Grid) DateOf(instant time.Time) Date {
	y, m, d := instant.In(g.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// DayBounds returns [start, end) of d in the reference location.
func (g *Grid) DayBounds(d Date) (time.Time, time.Time) {
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, g.loc)
	return start, time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, g.loc)
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
