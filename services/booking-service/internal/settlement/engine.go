package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/wallet"
)

type Result int

const (
	Settled Result = iota
	InsufficientFunds
	StatusChanged
	WalletMissing
)

// Settlement is the unit of work a Store applies atomically: append Txn,
// debit the wallet by Txn.Amount and complete the confirmed appointment.
type Settlement struct {
	AppointmentID string
	Txn           model.Transaction
	At            time.Time
}

type Outcome struct {
	Result      Result
	Appointment model.Appointment
	Wallet      model.Wallet
}

type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	GetWallet(ctx context.Context, customerID string) (model.Wallet, error)
	// Settle re-checks the balance and the appointment status under lock
	// and applies nothing unless the Result is Settled.
	Settle(ctx context.Context, s Settlement) (Outcome, error)
}

type Request struct {
	AppointmentID string
	CustomerID    string
	ServiceName   string
	Amount        decimal.Decimal
}

type Engine struct {
	store  Store
	notify *notify.Dispatcher
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, dispatcher *notify.Dispatcher, pub events.Publisher, logger *slog.Logger) *Engine {
	if pub == nil {
		pub = events.Discard
	}
	return &Engine{store: store, notify: dispatcher, events: pub, logger: logger, now: time.Now}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Settle charges the customer's wallet for a confirmed appointment and
// completes it. On any failure the wallet, ledger and appointment are left
// as they were.
func (e *Engine) Settle(ctx context.Context, actor model.Actor, req Request) (Outcome, error) {
	ctx, span := otel.Tracer("booking-service").Start(ctx, "settlement.settle")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", req.AppointmentID))

	out, err := e.settle(ctx, actor, req)
	if err != nil {
		span.SetStatus(codes.Error, string(model.CodeOf(err)))
	}
	return out, err
}

func (e *Engine) settle(ctx context.Context, actor model.Actor, req Request) (Outcome, error) {
	if !actor.IsAdmin() {
		return Outcome{}, model.Errorf(model.CodeForbidden, "only admins can settle appointments")
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.AppointmentID == "" || req.CustomerID == "" {
		return Outcome{}, model.Errorf(model.CodeInvalidRequest, "appointment_id and customer_id are required")
	}
	if req.Amount.IsNegative() {
		return Outcome{}, model.Errorf(model.CodeInvalidRequest, "amount must be >= 0")
	}
	if err := wallet.CheckAmount(req.Amount); err != nil {
		return Outcome{}, err
	}

	appt, err := e.store.GetAppointment(ctx, req.AppointmentID)
	if errors.Is(err, model.ErrNotFound) {
		return Outcome{}, model.NewError(model.CodeNotFound, "appointment not found", map[string]any{"appointment_id": req.AppointmentID})
	}
	if err != nil {
		return Outcome{}, model.Unknown("load appointment", err)
	}
	if appt.CustomerID != req.CustomerID {
		return Outcome{}, model.NewError(model.CodeInvalidRequest, "appointment belongs to a different customer",
			map[string]any{"appointment_id": appt.ID})
	}
	now := e.now()
	if err := lifecycle.Check(actor, appt, model.StatusCompleted, lifecycle.Settlement, now); err != nil {
		return Outcome{}, err
	}

	w, err := e.store.GetWallet(ctx, req.CustomerID)
	if errors.Is(err, model.ErrNotFound) {
		return Outcome{}, wallet.WalletNotFound(req.CustomerID)
	}
	if err != nil {
		return Outcome{}, model.Unknown("read wallet", err)
	}
	if w.Balance.LessThan(req.Amount) {
		return Outcome{}, wallet.Insufficient(req.Amount, w.Balance)
	}

	service := strings.TrimSpace(req.ServiceName)
	if service == "" {
		service = appt.ServiceName
	}
	out, err := e.store.Settle(ctx, Settlement{
		AppointmentID: appt.ID,
		At:            now.UTC(),
		Txn: model.Transaction{
			ID:            uuid.NewString(),
			CustomerID:    req.CustomerID,
			Kind:          model.TxSettlement,
			Service:       "Appointment service: " + service,
			Amount:        req.Amount,
			AppointmentID: appt.ID,
			CreatedAt:     now.UTC(),
		},
	})
	if err != nil {
		return Outcome{}, model.Unknown("settle appointment", err)
	}
	switch out.Result {
	case Settled:
	case InsufficientFunds:
		return Outcome{}, wallet.Insufficient(req.Amount, out.Wallet.Balance)
	case WalletMissing:
		return Outcome{}, wallet.WalletNotFound(req.CustomerID)
	default:
		current := out.Appointment
		if current.ID == "" {
			current = appt
		}
		return Outcome{}, model.NewError(model.CodeInvalidTransition, "appointment changed concurrently", map[string]any{
			"appointment_id": current.ID,
			"status":         string(current.Status),
			"requested":      string(model.StatusCompleted),
		})
	}

	e.logger.Info("appointment settled", "appointment_id", appt.ID, "customer_id", req.CustomerID,
		"amount", req.Amount.String(), "actor", actor.ID)
	e.events.Publish(ctx, events.StatusChanged(out.Appointment))
	e.notify.Send(ctx, notify.Notification{
		CustomerID: req.CustomerID,
		Title:      "Appointment settled",
		Message:    fmt.Sprintf("%s was settled and %s was deducted from your balance.", service, req.Amount.StringFixed(2)),
		Kind:       notify.KindSuccess,
	})
	return out, nil
}
