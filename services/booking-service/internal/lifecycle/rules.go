package lifecycle

import (
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

// Channel is the path a transition request arrives through. Completion is
// only reachable through settlement.
type Channel int

const (
	Direct Channel = iota
	Settlement
)

type actorRule int

const (
	adminOnly actorRule = iota
	adminOrOwner
)

type rule struct {
	actors     actorRule
	futureOnly bool
	settlement bool
}

type edge struct{ from, to model.Status }

var transitions = map[edge]rule{
	{model.StatusPending, model.StatusConfirmed}:   {actors: adminOnly},
	{model.StatusPending, model.StatusCancelled}:   {actors: adminOrOwner, futureOnly: true},
	{model.StatusConfirmed, model.StatusCancelled}: {actors: adminOrOwner, futureOnly: true},
	{model.StatusConfirmed, model.StatusCompleted}: {actors: adminOnly, settlement: true},
}

// Check validates moving appt to status to on behalf of actor. It is pure
// and is re-evaluated against the row's current status before every write.
func Check(actor model.Actor, appt model.Appointment, to model.Status, ch Channel, now time.Time) error {
	if !actor.IsAdmin() && !actor.Owns(appt.CustomerID) {
		return model.NewError(model.CodeForbidden, "appointment belongs to another customer",
			map[string]any{"appointment_id": appt.ID})
	}
	r, ok := transitions[edge{appt.Status, to}]
	if !ok || r.settlement != (ch == Settlement) {
		return invalid(appt, to, "transition not allowed")
	}
	if r.actors == adminOnly && !actor.IsAdmin() {
		return model.NewError(model.CodeForbidden, "only admins can move an appointment to "+string(to),
			map[string]any{"appointment_id": appt.ID})
	}
	if r.futureOnly && !appt.Instant.After(now) {
		return invalid(appt, to, "appointment time has already passed")
	}
	return nil
}

func invalid(appt model.Appointment, to model.Status, msg string) error {
	return model.NewError(model.CodeInvalidTransition, msg, map[string]any{
		"appointment_id": appt.ID,
		"status":         string(appt.Status),
		"requested":      string(to),
	})
}
