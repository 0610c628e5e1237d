// Package handlers exposes booking-service over HTTP with a chi router.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/frontdesk/libs/httpx"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/availability"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/booking"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/realtime"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/wallet"
)

type AppointmentLister interface {
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
}

type Deps struct {
	Grid         *slots.Grid
	Capacity     *capacity.Registry
	Availability *availability.Calculator
	Booking      *booking.Service
	Lifecycle    *lifecycle.Manager
	Settlement   *settlement.Engine
	Wallet       *wallet.Ledger
	Appointments AppointmentLister
	Hub          *realtime.Hub
	Identity     *Identity
	Logger       *slog.Logger
	// RequestTimeout bounds every route except the websocket feed.
	RequestTimeout time.Duration
	Now            func() time.Time
}

type API struct {
	Deps
}

func NewAPI(d Deps) *API {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	return &API{Deps: d}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(a.Identity.Middleware)

	if a.Hub != nil {
		r.Get("/api/v1/feed", a.feed)
	}

	r.Group(func(r chi.Router) {
		r.Use(httpx.WithTimeout(a.RequestTimeout))

		r.Get("/api/v1/slots", a.daySlots)
		r.Get("/api/v1/slots/{label}/count", a.slotCount)
		r.Get("/api/v1/slot-configs", a.listSlotConfigs)
		r.Put("/api/v1/slot-configs/{label}", a.setSlotCapacity)

		r.Route("/api/v1/appointments", func(r chi.Router) {
			r.Post("/", a.createAppointment)
			r.Get("/", a.listAppointments)
			r.Post("/bulk-cancel", a.bulkCancel)
			r.Post("/bulk-delete", a.bulkDelete)
			r.Get("/{id}", a.getAppointment)
			r.Delete("/{id}", a.deleteAppointment)
			r.Post("/{id}/confirm", a.confirmAppointment)
			r.Post("/{id}/cancel", a.cancelAppointment)
			r.Post("/{id}/settle", a.settleAppointment)
		})

		r.Route("/api/v1/wallets/{customerID}", func(r chi.Router) {
			r.Get("/", a.getWallet)
			r.Get("/transactions", a.listTransactions)
			r.Post("/recharge", a.rechargeWallet)
			r.Post("/consume", a.consumeWallet)
		})
	})
	return r
}

func (a *API) feed(w http.ResponseWriter, r *http.Request) {
	a.Hub.ServeWS(w, r, actorFrom(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var statusByCode = map[model.Code]int{
	model.CodeSlotClosed:          http.StatusConflict,
	model.CodeSlotFull:            http.StatusConflict,
	model.CodeInvalidTransition:   http.StatusConflict,
	model.CodeInsufficientBalance: http.StatusPaymentRequired,
	model.CodeNotFound:            http.StatusNotFound,
	model.CodeForbidden:           http.StatusForbidden,
	model.CodeInvalidRequest:      http.StatusBadRequest,
	model.CodeUnknown:             http.StatusInternalServerError,
}

// writeError renders err as {"error": {"code", "message", ...details}}.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := model.AsError(err)
	status, ok := statusByCode[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := make(map[string]any, len(e.Details)+3)
	for k, v := range e.Details {
		body[k] = v
	}
	body["code"] = e.Code
	body["message"] = e.Message
	if e.Code == model.CodeUnknown {
		body["retryable"] = true
		a.Logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func invalidRequest(msg string) error {
	return model.Errorf(model.CodeInvalidRequest, "%s", msg)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidRequest("request body is required")
		}
		return invalidRequest("invalid json body: " + err.Error())
	}
	return nil
}
