package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
)

type Store interface {
	GetWallet(ctx context.Context, customerID string) (model.Wallet, error)
	// Credit adds amount and points, creating the wallet when missing, and
	// appends txn in the same unit of work.
	Credit(ctx context.Context, txn model.Transaction, points int64) (model.Wallet, error)
	// Debit subtracts txn.Amount under a row lock. Unless allowNegative,
	// ok is false and nothing changes when the balance is short.
	Debit(ctx context.Context, txn model.Transaction, allowNegative bool) (w model.Wallet, ok bool, err error)
	ListTransactions(ctx context.Context, customerID string, limit int) ([]model.Transaction, error)
}

// Policy decides whether ordinary consumption may overdraw a wallet.
type Policy struct {
	AllowNegative bool
}

type Ledger struct {
	store  Store
	policy Policy
	notify *notify.Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

func NewLedger(store Store, policy Policy, dispatcher *notify.Dispatcher, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, policy: policy, notify: dispatcher, logger: logger, now: time.Now}
}

func (l *Ledger) Balance(ctx context.Context, actor model.Actor, customerID string) (model.Wallet, error) {
	if !actor.CanAccess(customerID) {
		return model.Wallet{}, model.Errorf(model.CodeForbidden, "wallet belongs to another customer")
	}
	w, err := l.store.GetWallet(ctx, customerID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Wallet{}, WalletNotFound(customerID)
	}
	if err != nil {
		return model.Wallet{}, model.Unknown("read wallet", err)
	}
	return w, nil
}

func (l *Ledger) Transactions(ctx context.Context, actor model.Actor, customerID string, limit int) ([]model.Transaction, error) {
	if !actor.CanAccess(customerID) {
		return nil, model.Errorf(model.CodeForbidden, "wallet belongs to another customer")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txns, err := l.store.ListTransactions(ctx, customerID, limit)
	if err != nil {
		return nil, model.Unknown("list transactions", err)
	}
	return txns, nil
}

// Recharge credits amount to the balance and floor(amount) loyalty points.
func (l *Ledger) Recharge(ctx context.Context, actor model.Actor, customerID string, amount decimal.Decimal) (model.Wallet, error) {
	if err := l.checkWrite(actor, customerID, amount); err != nil {
		return model.Wallet{}, err
	}
	txn := l.newTxn(customerID, model.TxRecharge, "Counter recharge", amount)
	w, err := l.store.Credit(ctx, txn, amount.Floor().IntPart())
	if errors.Is(err, model.ErrOutOfRange) {
		return model.Wallet{}, model.NewError(model.CodeInvalidRequest, "balance would exceed "+model.MaxMoney.StringFixed(2),
			map[string]any{"customer_id": customerID})
	}
	if err != nil {
		return model.Wallet{}, model.Unknown("recharge wallet", err)
	}
	l.logger.Info("wallet recharged", "customer_id", customerID, "amount", amount.String(), "actor", actor.ID)
	l.notify.Send(ctx, notify.Notification{
		CustomerID: customerID,
		Title:      "Recharge successful",
		Message:    fmt.Sprintf("Your account was credited %s. Current balance: %s.", money(amount), money(w.Balance)),
		Kind:       notify.KindSuccess,
	})
	return w, nil
}

// Consume debits the wallet for a walk-in service. Whether the balance may
// go negative is decided by the ledger's Policy.
func (l *Ledger) Consume(ctx context.Context, actor model.Actor, customerID, service string, amount decimal.Decimal) (model.Wallet, error) {
	if err := l.checkWrite(actor, customerID, amount); err != nil {
		return model.Wallet{}, err
	}
	service = strings.TrimSpace(service)
	if service == "" {
		return model.Wallet{}, model.Errorf(model.CodeInvalidRequest, "service is required")
	}
	w, ok, err := l.store.Debit(ctx, l.newTxn(customerID, model.TxConsumption, service, amount), l.policy.AllowNegative)
	if errors.Is(err, model.ErrNotFound) {
		return model.Wallet{}, WalletNotFound(customerID)
	}
	if err != nil {
		return model.Wallet{}, model.Unknown("debit wallet", err)
	}
	if !ok {
		return model.Wallet{}, Insufficient(amount, w.Balance)
	}
	l.logger.Info("wallet debited", "customer_id", customerID, "service", service, "amount", amount.String(), "actor", actor.ID)
	l.notify.Send(ctx, notify.Notification{
		CustomerID: customerID,
		Title:      "Spending alert",
		Message:    fmt.Sprintf("You just spent %s on %s.", money(amount), service),
		Kind:       notify.KindInfo,
	})
	return w, nil
}

func (l *Ledger) checkWrite(actor model.Actor, customerID string, amount decimal.Decimal) error {
	if !actor.IsAdmin() {
		return model.Errorf(model.CodeForbidden, "only admins can change wallet balances")
	}
	if strings.TrimSpace(customerID) == "" {
		return model.Errorf(model.CodeInvalidRequest, "customer_id is required")
	}
	if !amount.IsPositive() {
		return model.Errorf(model.CodeInvalidRequest, "amount must be positive")
	}
	return CheckAmount(amount)
}

// CheckAmount rejects amounts the ledger cannot store exactly: more than two
// decimal places, or a magnitude above model.MaxMoney.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return model.NewError(model.CodeInvalidRequest, "amount must have at most 2 decimal places",
			map[string]any{"amount": amount.String()})
	}
	if amount.Abs().GreaterThan(model.MaxMoney) {
		return model.NewError(model.CodeInvalidRequest, "amount exceeds "+model.MaxMoney.StringFixed(2),
			map[string]any{"amount": amount.String()})
	}
	return nil
}

func (l *Ledger) newTxn(customerID string, kind model.TransactionKind, service string, amount decimal.Decimal) model.Transaction {
	return model.Transaction{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Kind:       kind,
		Service:    service,
		Amount:     amount,
		CreatedAt:  l.now().UTC(),
	}
}

// Insufficient is the INSUFFICIENT_BALANCE error stating required versus
// available funds.
func Insufficient(required, available decimal.Decimal) error {
	return model.NewError(model.CodeInsufficientBalance,
		fmt.Sprintf("insufficient balance: required %s, available %s", money(required), money(available)),
		map[string]any{"required": required.StringFixed(2), "available": available.StringFixed(2)})
}

// WalletNotFound is the NOT_FOUND error for a customer without a wallet.
func WalletNotFound(customerID string) error {
	return model.NewError(model.CodeNotFound, "wallet not found", map[string]any{"customer_id": customerID})
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
