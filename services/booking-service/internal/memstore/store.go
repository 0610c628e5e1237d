// Package memstore keeps every booking-service table in process memory.
// It backs local runs without Postgres and the service tests; a single
// mutex gives it the same atomicity the SQL repository gets from row and
// advisory locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
)

type Store struct {
	mu      sync.Mutex
	appts   map[string]model.Appointment
	configs map[string]model.SlotConfig
	wallets map[string]model.Wallet
	txns    []model.Transaction
}

func New() *Store {
	return &Store{
		appts:   map[string]model.Appointment{},
		configs: map[string]model.SlotConfig{},
		wallets: map[string]model.Wallet{},
	}
}

// PutAppointment stores a as-is, bypassing capacity checks.
func (s *Store) PutAppointment(a model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	s.appts[a.ID] = a
}

func (s *Store) PutWallet(w model.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.CustomerID] = w
}

func (s *Store) GetSlotConfig(_ context.Context, label string) (model.SlotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[label]
	if !ok {
		return model.SlotConfig{}, model.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) ListSlotConfigs(context.Context) ([]model.SlotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SlotConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) UpsertSlotConfig(_ context.Context, cfg model.SlotConfig) (model.SlotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Label] = cfg
	return cfg, nil
}

func (s *Store) CountActiveAt(_ context.Context, instant time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveAt(instant), nil
}

func (s *Store) countActiveAt(instant time.Time) int {
	n := 0
	for _, a := range s.appts {
		if a.HoldsSeat() && a.Instant.Equal(instant) {
			n++
		}
	}
	return n
}

func (s *Store) ListActiveBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	all, err := s.ListAppointments(ctx, model.AppointmentFilter{From: start, To: end})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.HoldsSeat() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Instant.Equal(out[j].Instant) {
			return out[i].Instant.After(out[j].Instant)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ReserveSeat(_ context.Context, appt model.Appointment, capacity int) (model.Appointment, int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booked := s.countActiveAt(appt.Instant)
	if booked >= capacity {
		return model.Appointment{}, booked, false, nil
	}
	s.appts[appt.ID] = appt
	return appt, booked + 1, true, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

func (s *Store) TransitionStatus(_ context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, false, model.ErrNotFound
	}
	if a.Status != from {
		return a, false, nil
	}
	a = advance(a, to, at)
	s.appts[id] = a
	return a, true, nil
}

func (s *Store) DeleteAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	delete(s.appts, id)
	return a, nil
}

func (s *Store) GetWallet(_ context.Context, customerID string) (model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[customerID]
	if !ok {
		return model.Wallet{}, model.ErrNotFound
	}
	return w, nil
}

func (s *Store) Credit(_ context.Context, txn model.Transaction, points int64) (model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[txn.CustomerID]
	if !ok {
		w = model.Wallet{CustomerID: txn.CustomerID, Balance: decimal.Zero, TotalSpent: decimal.Zero}
	}
	if w.Balance.Add(txn.Amount).GreaterThan(model.MaxMoney) {
		return model.Wallet{}, model.ErrOutOfRange
	}
	w.Balance = w.Balance.Add(txn.Amount)
	w.Points += points
	w.UpdatedAt = txn.CreatedAt
	s.wallets[txn.CustomerID] = w
	s.txns = append(s.txns, txn)
	return w, nil
}

func (s *Store) Debit(_ context.Context, txn model.Transaction, allowNegative bool) (model.Wallet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[txn.CustomerID]
	if !ok {
		return model.Wallet{}, false, model.ErrNotFound
	}
	if !allowNegative && w.Balance.LessThan(txn.Amount) {
		return w, false, nil
	}
	w = s.debit(w, txn)
	return w, true, nil
}

func (s *Store) debit(w model.Wallet, txn model.Transaction) model.Wallet {
	at := txn.CreatedAt
	w.Balance = w.Balance.Sub(txn.Amount)
	w.TotalSpent = w.TotalSpent.Add(txn.Amount)
	w.VisitCount++
	w.LastVisit = &at
	w.UpdatedAt = at
	s.wallets[w.CustomerID] = w
	s.txns = append(s.txns, txn)
	return w
}

func (s *Store) ListTransactions(_ context.Context, customerID string, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for i := len(s.txns) - 1; i >= 0; i-- {
		if s.txns[i].CustomerID != customerID {
			continue
		}
		out = append(out, s.txns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Settle(_ context.Context, st settlement.Settlement) (settlement.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[st.Txn.CustomerID]
	if !ok {
		return settlement.Outcome{Result: settlement.WalletMissing}, nil
	}
	if w.Balance.LessThan(st.Txn.Amount) {
		return settlement.Outcome{Result: settlement.InsufficientFunds, Wallet: w}, nil
	}
	a, ok := s.appts[st.AppointmentID]
	if !ok || a.Status != model.StatusConfirmed || a.CustomerID != st.Txn.CustomerID {
		return settlement.Outcome{Result: settlement.StatusChanged, Appointment: a, Wallet: w}, nil
	}
	a = advance(a, model.StatusCompleted, st.At)
	s.appts[a.ID] = a
	w = s.debit(w, st.Txn)
	return settlement.Outcome{Result: settlement.Settled, Appointment: a, Wallet: w}, nil
}

func advance(a model.Appointment, to model.Status, at time.Time) model.Appointment {
	a.Status = to
	a.Version++
	a.UpdatedAt = at
	return a
}
