package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

// dateParam reads ?date=YYYY-MM-DD, defaulting to today in the slot zone.
func (a *API) dateParam(r *http.Request) (slots.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return a.Grid.DateOf(a.Now()), nil
	}
	d, err := slots.ParseDate(raw)
	if err != nil {
		return slots.Date{}, invalidRequest("date must be YYYY-MM-DD")
	}
	return d, nil
}

func (a *API) daySlots(w http.ResponseWriter, r *http.Request) {
	date, err := a.dateParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	day, err := a.Availability.Day(r.Context(), date)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date.String(), "slots": day})
}

func (a *API) slotCount(w http.ResponseWriter, r *http.Request) {
	date, err := a.dateParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	label := chi.URLParam(r, "label")
	n, err := a.Availability.CountBooked(r.Context(), date, label)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date.String(), "slot_label": label, "booked": n})
}

func (a *API) listSlotConfigs(w http.ResponseWriter, r *http.Request) {
	cfgs, err := a.Capacity.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"default_capacity": a.Capacity.Default(), "slots": cfgs})
}

type setCapacityRequest struct {
	Capacity *int `json:"capacity"`
}

func (a *API) setSlotCapacity(w http.ResponseWriter, r *http.Request) {
	var req setCapacityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Capacity == nil {
		a.writeError(w, r, invalidRequest("capacity is required"))
		return
	}
	cfg, err := a.Capacity.SetCapacity(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "label"), *req.Capacity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
