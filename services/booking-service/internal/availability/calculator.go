package availability

import (
	"context"
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

type Store interface {
	// CountActiveAt counts non-cancelled appointments at exactly instant.
	CountActiveAt(ctx context.Context, instant time.Time) (int, error)
	// ListActiveBetween returns non-cancelled appointments in [start, end).
	ListActiveBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error)
}

type CapacitySource interface {
	Snapshot(ctx context.Context) ([]model.SlotConfig, error)
}

// Slot is the availability of one grid label on one date.
type Slot struct {
	Label     string    `json:"slot_label"`
	Instant   time.Time `json:"appointment_instant"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Remaining int       `json:"remaining"`
	Closed    bool      `json:"closed"`
	Full      bool      `json:"full"`
	Past      bool      `json:"past"`
}

type Calculator struct {
	store    Store
	capacity CapacitySource
	grid     *slots.Grid
	now      func() time.Time
}

func NewCalculator(store Store, capacity CapacitySource, grid *slots.Grid) *Calculator {
	return &Calculator{store: store, capacity: capacity, grid: grid, now: time.Now}
}

func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CountBooked counts the seats held at label on date. Distinct dates with
// the same label are independent.
func (c *Calculator) CountBooked(ctx context.Context, date slots.Date, label string) (int, error) {
	instant, err := c.grid.Instant(date, label)
	if err != nil {
		return 0, model.NewError(model.CodeInvalidRequest, err.Error(), map[string]any{"slot_label": label})
	}
	n, err := c.store.CountActiveAt(ctx, instant)
	if err != nil {
		return 0, model.Unknown("count booked seats", err)
	}
	return n, nil
}

// Day summarises every grid slot on date. Appointments that do not sit on
// the grid are left out of the counts.
func (c *Calculator) Day(ctx context.Context, date slots.Date) ([]Slot, error) {
	configs, err := c.capacity.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start, end := c.grid.DayBounds(date)
	appts, err := c.store.ListActiveBetween(ctx, start, end)
	if err != nil {
		return nil, model.Unknown("list appointments", err)
	}

	booked := map[string]int{}
	for _, a := range appts {
		if !a.HoldsSeat() {
			continue
		}
		label, ok := c.grid.Label(a.Instant)
		if !ok {
			continue
		}
		booked[label]++
	}

	now := c.now()
	out := make([]Slot, 0, len(configs))
	for _, cfg := range configs {
		instant, err := c.grid.Instant(date, cfg.Label)
		if err != nil {
			continue
		}
		s := Slot{
			Label:    cfg.Label,
			Instant:  instant,
			Capacity: cfg.Capacity,
			Booked:   booked[cfg.Label],
			Closed:   cfg.Capacity == 0,
			Past:     !instant.After(now),
		}
		if s.Booked < s.Capacity {
			s.Remaining = s.Capacity - s.Booked
		}
		s.Full = !s.Closed && s.Remaining == 0
		out = append(out, s)
	}
	return out, nil
}
