package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/booking"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

// createAppointmentRequest accepts either an RFC3339 instant or a
// date plus slot label.
type createAppointmentRequest struct {
	CustomerID  string `json:"customer_id"`
	ServiceName string `json:"service_name"`
	Instant     string `json:"appointment_instant"`
	Date        string `json:"date"`
	SlotLabel   string `json:"slot_label"`
	Notes       string `json:"notes"`
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())

	customerID := strings.TrimSpace(req.CustomerID)
	switch {
	case actor.IsAdmin():
		if customerID == "" {
			a.writeError(w, r, invalidRequest("customer_id is required"))
			return
		}
	case customerID == "":
		customerID = actor.ID
	case customerID != actor.ID:
		a.writeError(w, r, model.Errorf(model.CodeForbidden, "customers can only book for themselves"))
		return
	}

	instant, err := a.requestedInstant(req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	appt, err := a.Booking.AttemptBooking(r.Context(), booking.Request{
		CustomerID:  customerID,
		ServiceName: req.ServiceName,
		Instant:     instant,
		Notes:       req.Notes,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (a *API) requestedInstant(req createAppointmentRequest) (time.Time, error) {
	if raw := strings.TrimSpace(req.Instant); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, invalidRequest("appointment_instant must be RFC3339")
		}
		return t, nil
	}
	if req.Date == "" || req.SlotLabel == "" {
		return time.Time{}, invalidRequest("appointment_instant or date and slot_label are required")
	}
	d, err := slots.ParseDate(req.Date)
	if err != nil {
		return time.Time{}, invalidRequest("date must be YYYY-MM-DD")
	}
	t, err := a.Grid.Instant(d, req.SlotLabel)
	if err != nil {
		return time.Time{}, model.NewError(model.CodeInvalidRequest, err.Error(), map[string]any{"slot_label": req.SlotLabel})
	}
	return t, nil
}

// listAppointments returns everyone's history to admins and the caller's
// own history to customers.
func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actor := actorFrom(r.Context())

	f := model.AppointmentFilter{CustomerID: strings.TrimSpace(q.Get("customer_id"))}
	if !actor.IsAdmin() {
		if f.CustomerID != "" && f.CustomerID != actor.ID {
			a.writeError(w, r, model.Errorf(model.CodeForbidden, "customers can only list their own appointments"))
			return
		}
		f.CustomerID = actor.ID
	}
	if s := model.Status(q.Get("status")); s != "" {
		if !s.Valid() {
			a.writeError(w, r, invalidRequest("unknown status"))
			return
		}
		f.Status = s
	}
	if raw := q.Get("from"); raw != "" {
		d, err := slots.ParseDate(raw)
		if err != nil {
			a.writeError(w, r, invalidRequest("from must be YYYY-MM-DD"))
			return
		}
		f.From, _ = a.Grid.DayBounds(d)
	}
	if raw := q.Get("to"); raw != "" {
		d, err := slots.ParseDate(raw)
		if err != nil {
			a.writeError(w, r, invalidRequest("to must be YYYY-MM-DD"))
			return
		}
		_, f.To = a.Grid.DayBounds(d)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.writeError(w, r, invalidRequest("limit must be a positive integer"))
			return
		}
		f.Limit = n
	}

	items, err := a.Appointments.ListAppointments(r.Context(), f)
	if err != nil {
		a.writeError(w, r, model.Unknown("list appointments", err))
		return
	}
	if items == nil {
		items = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (a *API) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := a.Lifecycle.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := a.Lifecycle.Confirm(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := a.Lifecycle.Cancel(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := a.Lifecycle.Delete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

func (a *API) bulkCancel(w http.ResponseWriter, r *http.Request) {
	a.bulk(w, r, a.Lifecycle.BulkCancel)
}

func (a *API) bulkDelete(w http.ResponseWriter, r *http.Request) {
	a.bulk(w, r, a.Lifecycle.BulkDelete)
}

func (a *API) bulk(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor model.Actor, ids []string) lifecycle.BulkResult) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		a.writeError(w, r, model.Errorf(model.CodeForbidden, "bulk operations are admin only"))
		return
	}
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		a.writeError(w, r, invalidRequest("ids is required"))
		return
	}
	writeJSON(w, http.StatusOK, op(r.Context(), actor, req.IDs))
}

type settleRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	CustomerID  string           `json:"customer_id"`
	ServiceName string           `json:"service_name"`
}

type settleResponse struct {
	Appointment model.Appointment `json:"appointment"`
	Wallet      model.Wallet      `json:"wallet"`
}

// settleAppointment fills customer and service from the stored
// appointment when the body leaves them out.
func (a *API) settleAppointment(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		a.writeError(w, r, invalidRequest("amount is required"))
		return
	}
	actor := actorFrom(r.Context())
	id := chi.URLParam(r, "id")

	if req.CustomerID == "" || req.ServiceName == "" {
		appt, err := a.Lifecycle.Get(r.Context(), actor, id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if req.CustomerID == "" {
			req.CustomerID = appt.CustomerID
		}
		if req.ServiceName == "" {
			req.ServiceName = appt.ServiceName
		}
	}

	out, err := a.Settlement.Settle(r.Context(), actor, settlement.Request{
		AppointmentID: id,
		CustomerID:    req.CustomerID,
		ServiceName:   req.ServiceName,
		Amount:        *req.Amount,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{Appointment: out.Appointment, Wallet: out.Wallet})
}
