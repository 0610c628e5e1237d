package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

type Type string

const (
	AppointmentCreated       Type = "appointment.created"
	AppointmentStatusChanged Type = "appointment.status_changed"
	AppointmentDeleted       Type = "appointment.deleted"
	CapacityChanged          Type = "slot.capacity_changed"
)

// Event is one change to an appointment or a slot config. It carries the
// full entity snapshot so a view can apply it without refetching.
type Event struct {
	ID          string             `json:"id"`
	Type        Type               `json:"type"`
	At          time.Time          `json:"at"`
	Appointment *model.Appointment `json:"appointment,omitempty"`
	Slot        *model.SlotConfig  `json:"slot,omitempty"`
}

// EntityKey identifies the entity the event is about.
func (e Event) EntityKey() string {
	switch {
	case e.Appointment != nil:
		return "appointment:" + e.Appointment.ID
	case e.Slot != nil:
		return "slot:" + e.Slot.Label
	}
	return ""
}

// CustomerID is the owner of an appointment event, empty for slot events.
func (e Event) CustomerID() string {
	if e.Appointment != nil {
		return e.Appointment.CustomerID
	}
	return ""
}

func newEvent(t Type, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, At: at.UTC()}
}

func Created(a model.Appointment) Event {
	e := newEvent(AppointmentCreated, a.UpdatedAt)
	e.Appointment = &a
	return e
}

func StatusChanged(a model.Appointment) Event {
	e := newEvent(AppointmentStatusChanged, a.UpdatedAt)
	e.Appointment = &a
	return e
}

func Deleted(a model.Appointment, at time.Time) Event {
	e := newEvent(AppointmentDeleted, at)
	e.Appointment = &a
	return e
}

func CapacitySet(cfg model.SlotConfig) Event {
	e := newEvent(CapacityChanged, cfg.UpdatedAt)
	e.Slot = &cfg
	return e
}

// Publisher delivers events to subscribed views without waiting for them.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type PublisherFunc func(context.Context, Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) {})
