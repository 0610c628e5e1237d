package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
)

// Settle locks the wallet row, then completes the appointment only if it
// is still confirmed for the same customer, all in one transaction.
func (r *Repository) Settle(ctx context.Context, s settlement.Settlement) (settlement.Outcome, error) {
	var out settlement.Outcome
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, s.Txn.CustomerID)
		if errors.Is(err, model.ErrNotFound) {
			out = settlement.Outcome{Result: settlement.WalletMissing}
			return nil
		}
		if err != nil {
			return err
		}
		if w.Balance.LessThan(s.Txn.Amount) {
			out = settlement.Outcome{Result: settlement.InsufficientFunds, Wallet: w}
			return nil
		}

		a, err := scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'completed', version = version + 1, updated_at = $3
			WHERE id = $1 AND customer_id = $2 AND status = 'confirmed'
			RETURNING `+appointmentColumns,
			s.AppointmentID, s.Txn.CustomerID, s.At))
		if db.IsNotFound(err) {
			current, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, s.AppointmentID))
			if err != nil && !db.IsNotFound(err) {
				return err
			}
			out = settlement.Outcome{Result: settlement.StatusChanged, Appointment: current, Wallet: w}
			return nil
		}
		if err != nil {
			return err
		}

		if w, err = debitWallet(ctx, tx, s.Txn); err != nil {
			return err
		}
		if err := r.appendTransaction(ctx, tx, s.Txn); err != nil {
			return err
		}
		if err := r.emit(ctx, tx, "appointment", a.ID, outbox.TopicAppointmentStatusChanged,
			statusChange{Appointment: a, From: model.StatusConfirmed}); err != nil {
			return err
		}
		out = settlement.Outcome{Result: settlement.Settled, Appointment: a, Wallet: w}
		return nil
	})
	return out, err
}
