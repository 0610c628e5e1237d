package reminders

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/memstore"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

var cst = time.FixedZone("CST", 8*3600)

func TestRunRemindsConfirmedAppointmentsTomorrow(t *testing.T) {
	grid, err := slots.NewGrid(cst, slots.DefaultStep, slots.DefaultWindows())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	store := memstore.New()
	tomorrow := time.Date(2026, 3, 2, 15, 0, 0, 0, cst)
	store.PutAppointment(model.Appointment{ID: "a1", CustomerID: "c1", ServiceName: "Massage", Instant: tomorrow, Status: model.StatusConfirmed})
	store.PutAppointment(model.Appointment{ID: "a2", CustomerID: "c2", ServiceName: "Facial", Instant: tomorrow, Status: model.StatusPending})
	store.PutAppointment(model.Appointment{ID: "a3", CustomerID: "c3", ServiceName: "Facial", Instant: tomorrow.AddDate(0, 0, 1), Status: model.StatusConfirmed})

	var (
		mu   sync.Mutex
		sent []notify.Notification
	)
	sink := notify.SinkFunc(func(_ context.Context, n notify.Notification) error {
		mu.Lock()
		sent = append(sent, n)
		mu.Unlock()
		return nil
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := NewJob(store, grid, notify.NewDispatcher(sink, logger), logger).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, cst) })

	n, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 || len(sent) != 1 {
		t.Fatalf("sent=%d notifications=%d want 1", n, len(sent))
	}
	if sent[0].CustomerID != "c1" || !strings.Contains(sent[0].Message, "15:00") {
		t.Fatalf("unexpected reminder %+v", sent[0])
	}
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	grid, err := slots.NewGrid(cst, slots.DefaultStep, slots.DefaultWindows())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	job := NewJob(memstore.New(), grid, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := cron.New()
	if _, err := job.Schedule(c, "not a schedule"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := job.Schedule(c, ""); err != nil {
		t.Fatalf("default schedule: %v", err)
	}
}
