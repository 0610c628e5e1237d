package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

type Store interface {
	// ReserveSeat inserts appt only if fewer than capacity non-cancelled
	// appointments exist at appt.Instant, as one atomic step. booked is the
	// count observed under the lock; ok is false when the slot was full.
	ReserveSeat(ctx context.Context, appt model.Appointment, capacity int) (saved model.Appointment, booked int, ok bool, err error)
}

type CapacityReader interface {
	Capacity(ctx context.Context, label string) (int, error)
}

type Request struct {
	CustomerID  string
	ServiceName string
	Instant     time.Time
	Notes       string
}

type Service struct {
	store    Store
	capacity CapacityReader
	grid     *slots.Grid
	events   events.Publisher
	notify   *notify.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, capacity CapacityReader, grid *slots.Grid, pub events.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Discard
	}
	return &Service{store: store, capacity: capacity, grid: grid, events: pub, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithDispatcher sends a store-wide alert for every new booking.
func (s *Service) WithDispatcher(d *notify.Dispatcher) *Service {
	s.notify = d
	return s
}

// AttemptBooking creates a pending appointment if the slot still has a
// free seat. Failures are SLOT_CLOSED, SLOT_FULL (with the refreshed
// count), INVALID_REQUEST or UNKNOWN.
func (s *Service) AttemptBooking(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := otel.Tracer("booking-service").Start(ctx, "booking.attempt")
	defer span.End()

	appt, err := s.attempt(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, string(model.CodeOf(err)))
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	return appt, nil
}

func (s *Service) attempt(ctx context.Context, req Request) (model.Appointment, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if req.CustomerID == "" || req.ServiceName == "" {
		return model.Appointment{}, model.Errorf(model.CodeInvalidRequest, "customer_id and service_name are required")
	}
	label, ok := s.grid.Label(req.Instant)
	if !ok {
		return model.Appointment{}, model.NewError(model.CodeInvalidRequest, "instant is not on the slot grid",
			map[string]any{"appointment_instant": req.Instant.UTC().Format(time.RFC3339)})
	}
	now := s.now()
	if !req.Instant.After(now) {
		return model.Appointment{}, model.Errorf(model.CodeInvalidRequest, "appointment instant must be in the future")
	}

	capacity, err := s.capacity.Capacity(ctx, label)
	if err != nil {
		return model.Appointment{}, err
	}
	if capacity == 0 {
		return model.Appointment{}, model.NewError(model.CodeSlotClosed, "slot is closed for booking",
			map[string]any{"slot_label": label})
	}

	appt := model.Appointment{
		ID:          uuid.NewString(),
		CustomerID:  req.CustomerID,
		ServiceName: req.ServiceName,
		Instant:     req.Instant.UTC(),
		Status:      model.StatusPending,
		Notes:       strings.TrimSpace(req.Notes),
		Version:     1,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	saved, booked, ok, err := s.store.ReserveSeat(ctx, appt, capacity)
	if err != nil {
		return model.Appointment{}, model.Unknown("reserve seat", err)
	}
	if !ok {
		s.logger.Info("slot full", "slot_label", label, "instant", appt.Instant, "booked", booked, "capacity", capacity)
		return model.Appointment{}, model.NewError(model.CodeSlotFull, "slot is fully booked", map[string]any{
			"slot_label": label,
			"booked":     booked,
			"capacity":   capacity,
		})
	}

	s.logger.Info("appointment booked", "appointment_id", saved.ID, "customer_id", saved.CustomerID, "slot_label", label)
	s.events.Publish(ctx, events.Created(saved))
	s.notify.Send(ctx, notify.Notification{
		Title:   "New booking",
		Message: fmt.Sprintf("Customer %s booked %s on %s at %s.", saved.CustomerID, saved.ServiceName, s.grid.DateOf(saved.Instant), label),
		Kind:    notify.KindAlert,
	})
	return saved, nil
}
