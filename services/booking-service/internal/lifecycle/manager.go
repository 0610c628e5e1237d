package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
)

type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// TransitionStatus moves id from -> to only if the row is still in
	// from. ok is false when another writer got there first.
	TransitionStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (appt model.Appointment, ok bool, err error)
	DeleteAppointment(ctx context.Context, id string) (model.Appointment, error)
}

type Manager struct {
	store  Store
	events events.Publisher
	notify *notify.Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Store, pub events.Publisher, logger *slog.Logger) *Manager {
	if pub == nil {
		pub = events.Discard
	}
	return &Manager{store: store, events: pub, logger: logger, now: time.Now}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithDispatcher alerts the store when a customer cancels their own
// appointment.
func (m *Manager) WithDispatcher(d *notify.Dispatcher) *Manager {
	m.notify = d
	return m
}

// Get returns an appointment visible to actor.
func (m *Manager) Get(ctx context.Context, actor model.Actor, id string) (model.Appointment, error) {
	appt, err := m.load(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actor.CanAccess(appt.CustomerID) {
		return model.Appointment{}, model.NewError(model.CodeForbidden, "appointment belongs to another customer",
			map[string]any{"appointment_id": id})
	}
	return appt, nil
}

func (m *Manager) Confirm(ctx context.Context, actor model.Actor, id string) (model.Appointment, error) {
	return m.transition(ctx, actor, id, model.StatusConfirmed)
}

func (m *Manager) Cancel(ctx context.Context, actor model.Actor, id string) (model.Appointment, error) {
	return m.transition(ctx, actor, id, model.StatusCancelled)
}

// Delete physically removes an appointment. Unlike cancel it is admin only
// and allowed from any status.
func (m *Manager) Delete(ctx context.Context, actor model.Actor, id string) error {
	if !actor.IsAdmin() {
		return model.Errorf(model.CodeForbidden, "only admins can delete appointments")
	}
	appt, err := m.store.DeleteAppointment(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return model.Unknown("delete appointment", err)
	}
	m.logger.Info("appointment deleted", "appointment_id", id, "actor", actor.ID)
	m.events.Publish(ctx, events.Deleted(appt, m.now()))
	return nil
}

func (m *Manager) transition(ctx context.Context, actor model.Actor, id string, to model.Status) (model.Appointment, error) {
	appt, err := m.load(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	now := m.now()
	if err := Check(actor, appt, to, Direct, now); err != nil {
		return model.Appointment{}, err
	}

	updated, ok, err := m.store.TransitionStatus(ctx, id, appt.Status, to, now.UTC())
	if errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, notFound(id)
	}
	if err != nil {
		return model.Appointment{}, model.Unknown("update appointment", err)
	}
	if !ok {
		current, err := m.load(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		return model.Appointment{}, invalid(current, to, "appointment changed concurrently")
	}

	m.logger.Info("appointment status changed", "appointment_id", id, "from", appt.Status, "to", to, "actor", actor.ID)
	m.events.Publish(ctx, events.StatusChanged(updated))
	if to == model.StatusCancelled && !actor.IsAdmin() {
		m.notify.Send(ctx, notify.Notification{
			Title:   "Appointment cancelled",
			Message: fmt.Sprintf("Customer %s cancelled %s at %s.", updated.CustomerID, updated.ServiceName, updated.Instant.UTC().Format(time.RFC3339)),
			Kind:    notify.KindAlert,
		})
	}
	return updated, nil
}

func (m *Manager) load(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := m.store.GetAppointment(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, notFound(id)
	}
	if err != nil {
		return model.Appointment{}, model.Unknown("load appointment", err)
	}
	return appt, nil
}

func notFound(id string) error {
	return model.NewError(model.CodeNotFound, "appointment not found", map[string]any{"appointment_id": id})
}
