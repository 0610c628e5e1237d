package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

// DefaultRetention is how long a View keeps appointments that can no longer
// change (cancelled, completed or deleted). A duplicate of their last event
// arriving later than that is no longer recognised.
const DefaultRetention = 30 * time.Minute

type apptEntry struct {
	appt    model.Appointment
	deleted bool
	// doneAt is when the entry became final; zero while it can still change.
	doneAt time.Time
}

// View folds change events into a snapshot keyed by entity id. Apply is
// idempotent and tolerates reordering: an appointment event only wins with
// a higher Version, a slot event only with a newer UpdatedAt, and a delete
// leaves a tombstone that later events for the same id cannot undo.
//
// Final entries are pruned once they are older than the retention, so a
// long-lived session holds live appointments plus a bounded tail.
type View struct {
	mu        sync.Mutex
	appts     map[string]apptEntry
	slots     map[string]model.SlotConfig
	retention time.Duration
	now       func() time.Time
	sweptAt   time.Time
}

func NewView() *View {
	return &View{
		appts:     map[string]apptEntry{},
		slots:     map[string]model.SlotConfig{},
		retention: DefaultRetention,
		now:       time.Now,
	}
}

// Apply reports whether e changed the view.
func (v *View) Apply(e events.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	v.prune(now)

	switch {
	case e.Appointment != nil:
		return v.applyAppointment(e.Type, *e.Appointment, now)
	case e.Slot != nil:
		cur, ok := v.slots[e.Slot.Label]
		if ok && !e.Slot.UpdatedAt.After(cur.UpdatedAt) {
			return false
		}
		v.slots[e.Slot.Label] = *e.Slot
		return true
	}
	return false
}

func (v *View) applyAppointment(t events.Type, a model.Appointment, now time.Time) bool {
	cur, ok := v.appts[a.ID]
	if ok && cur.deleted {
		return false
	}
	if t == events.AppointmentDeleted {
		v.appts[a.ID] = apptEntry{appt: a, deleted: true, doneAt: now}
		return true
	}
	if ok && a.Version <= cur.appt.Version {
		return false
	}
	entry := apptEntry{appt: a}
	if a.Status.Terminal() {
		entry.doneAt = now
	}
	v.appts[a.ID] = entry
	return true
}

// prune drops final entries older than the retention. It sweeps at most
// once per retention period.
func (v *View) prune(now time.Time) {
	if v.retention <= 0 || now.Sub(v.sweptAt) < v.retention {
		return
	}
	v.sweptAt = now
	for id, e := range v.appts {
		if !e.doneAt.IsZero() && now.Sub(e.doneAt) >= v.retention {
			delete(v.appts, id)
		}
	}
}

// Len is the number of appointment entries held, tombstones included.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.appts)
}

func (v *View) Appointment(id string) (model.Appointment, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.appts[id]
	if !ok || e.deleted {
		return model.Appointment{}, false
	}
	return e.appt, true
}

// Appointments lists live appointments ordered by instant.
func (v *View) Appointments() []model.Appointment {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Appointment, 0, len(v.appts))
	for _, e := range v.appts {
		if !e.deleted {
			out = append(out, e.appt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Instant.Equal(out[j].Instant) {
			return out[i].Instant.Before(out[j].Instant)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *View) Capacity(label string) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cfg, ok := v.slots[label]
	return cfg.Capacity, ok
}
