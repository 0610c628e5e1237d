package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/memstore"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

var (
	cst   = time.FixedZone("CST", 8*3600)
	now   = time.Date(2026, 3, 1, 12, 0, 0, 0, cst)
	admin = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

type fixture struct {
	svc       *Service
	store     *memstore.Store
	registry  *capacity.Registry
	mu        sync.Mutex
	published []events.Event
	alerts    []notify.Notification
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	grid, err := slots.NewGrid(cst, slots.DefaultStep, slots.DefaultWindows())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{store: memstore.New()}
	pub := events.PublisherFunc(func(_ context.Context, e events.Event) {
		f.mu.Lock()
		f.published = append(f.published, e)
		f.mu.Unlock()
	})
	f.registry = capacity.NewRegistry(f.store, grid, capacity.DefaultCapacity, pub, logger)
	d := notify.NewDispatcher(notify.SinkFunc(func(_ context.Context, n notify.Notification) error {
		f.mu.Lock()
		f.alerts = append(f.alerts, n)
		f.mu.Unlock()
		return nil
	}), logger)
	f.svc = NewService(f.store, f.registry, grid, pub, logger).
		WithClock(func() time.Time { return now }).
		WithDispatcher(d)
	return f
}

func request(customer string, at time.Time) Request {
	return Request{CustomerID: customer, ServiceName: "Facial", Instant: at}
}

func TestThirdBookingForFullSlotFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, cst)

	for _, c := range []string{"cust-a", "cust-b"} {
		appt, err := f.svc.AttemptBooking(ctx, request(c, at))
		if err != nil {
			t.Fatalf("booking for %s: %v", c, err)
		}
		if appt.Status != model.StatusPending || appt.Version != 1 {
			t.Fatalf("unexpected appointment %+v", appt)
		}
	}

	_, err := f.svc.AttemptBooking(ctx, request("cust-c", at))
	var derr *model.Error
	if !errors.As(err, &derr) || derr.Code != model.CodeSlotFull {
		t.Fatalf("expected SLOT_FULL, got %v", err)
	}
	if derr.Details["booked"] != 2 {
		t.Fatalf("expected refreshed count 2, got %v", derr.Details["booked"])
	}
	if n, _ := f.store.CountActiveAt(ctx, at); n != 2 {
		t.Fatalf("capacity exceeded: %d", n)
	}
	if len(f.published) != 2 || f.published[0].Type != events.AppointmentCreated {
		t.Fatalf("expected two created events, got %+v", f.published)
	}
}

func TestSameLabelOtherDayIsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range []string{"a", "b"} {
		if _, err := f.svc.AttemptBooking(ctx, request(c, time.Date(2026, 3, 2, 9, 0, 0, 0, cst))); err != nil {
			t.Fatalf("booking: %v", err)
		}
	}
	if _, err := f.svc.AttemptBooking(ctx, request("c", time.Date(2026, 3, 3, 9, 0, 0, 0, cst))); err != nil {
		t.Fatalf("next day should be free: %v", err)
	}
}

func TestClosedSlotFailsRegardlessOfBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.registry.SetCapacity(ctx, admin, "15:30", 0); err != nil {
		t.Fatalf("SetCapacity: %v", err)
	}
	for _, day := range []int{2, 9, 20} {
		_, err := f.svc.AttemptBooking(ctx, request("cust", time.Date(2026, 3, day, 15, 30, 0, 0, cst)))
		if model.CodeOf(err) != model.CodeSlotClosed {
			t.Fatalf("day %d: expected SLOT_CLOSED, got %v", day, err)
		}
	}
}

func TestCancelledAppointmentsFreeSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 10, 30, 0, 0, cst)
	f.store.PutAppointment(model.Appointment{ID: "x1", CustomerID: "old", Instant: at, Status: model.StatusCancelled})
	f.store.PutAppointment(model.Appointment{ID: "x2", CustomerID: "old", Instant: at, Status: model.StatusConfirmed})
	if _, err := f.svc.AttemptBooking(ctx, request("new", at)); err != nil {
		t.Fatalf("one seat should remain: %v", err)
	}
}

func TestRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]Request{
		"off grid":    request("c", time.Date(2026, 3, 2, 9, 10, 0, 0, cst)),
		"lunch break": request("c", time.Date(2026, 3, 2, 13, 0, 0, 0, cst)),
		"past":        request("c", time.Date(2026, 2, 27, 9, 0, 0, 0, cst)),
		"no customer": request("", time.Date(2026, 3, 2, 9, 0, 0, 0, cst)),
		"no service":  {CustomerID: "c", Instant: time.Date(2026, 3, 2, 9, 0, 0, 0, cst)},
	}
	for name, req := range cases {
		if _, err := f.svc.AttemptBooking(ctx, req); model.CodeOf(err) != model.CodeInvalidRequest {
			t.Fatalf("%s: expected INVALID_REQUEST, got %v", name, err)
		}
	}
}

func TestConcurrentBookingsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 16, 30, 0, 0, cst)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, full := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AttemptBooking(ctx, request("cust", at))
			mu.Lock()
			defer mu.Unlock()
			switch model.CodeOf(err) {
			case "":
				wins++
			case model.CodeSlotFull:
				full++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != capacity.DefaultCapacity || full != 20-capacity.DefaultCapacity {
		t.Fatalf("expected %d wins, got wins=%d full=%d", capacity.DefaultCapacity, wins, full)
	}
}

func TestNewBookingAlertsTheStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 15, 30, 0, 0, cst)

	if _, err := f.svc.AttemptBooking(ctx, request("cust-a", at)); err != nil {
		t.Fatalf("AttemptBooking: %v", err)
	}
	if len(f.alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", f.alerts)
	}
	n := f.alerts[0]
	if n.CustomerID != "" || n.Kind != notify.KindAlert {
		t.Fatalf("expected a store-wide alert, got %+v", n)
	}
	if n.Message != "Customer cust-a booked Facial on 2026-03-02 at 15:30." {
		t.Fatalf("unexpected message %q", n.Message)
	}

	if _, err := f.svc.AttemptBooking(ctx, request("cust-b", at.Add(time.Minute))); err == nil {
		t.Fatalf("expected off-grid booking to fail")
	}
	if len(f.alerts) != 1 {
		t.Fatalf("failed booking should not alert, got %d alerts", len(f.alerts))
	}
}
