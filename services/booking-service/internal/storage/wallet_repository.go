package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
)

const walletColumns = `customer_id, balance::text, points, total_spent::text, visit_count, last_visit, updated_at`

func scanWallet(row pgx.Row) (model.Wallet, error) {
	var (
		w              model.Wallet
		balance, spent string
	)
	if err := row.Scan(&w.CustomerID, &balance, &w.Points, &spent, &w.VisitCount, &w.LastVisit, &w.UpdatedAt); err != nil {
		return model.Wallet{}, err
	}
	var err error
	if w.Balance, err = parseMoney(balance); err != nil {
		return model.Wallet{}, err
	}
	if w.TotalSpent, err = parseMoney(spent); err != nil {
		return model.Wallet{}, err
	}
	return w, nil
}

func (r *Repository) GetWallet(ctx context.Context, customerID string) (model.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE customer_id = $1`, customerID))
	if db.IsNotFound(err) {
		return model.Wallet{}, model.ErrNotFound
	}
	return w, err
}

func (r *Repository) Credit(ctx context.Context, txn model.Transaction, points int64) (model.Wallet, error) {
	var out model.Wallet
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		w, err := scanWallet(tx.QueryRow(ctx, `
			INSERT INTO wallets (customer_id, balance, points, updated_at)
			VALUES ($1, $2::numeric, $3, $4)
			ON CONFLICT (customer_id) DO UPDATE
			SET balance = wallets.balance + EXCLUDED.balance,
				points = wallets.points + EXCLUDED.points,
				updated_at = EXCLUDED.updated_at
			RETURNING `+walletColumns,
			txn.CustomerID, txn.Amount.String(), points, txn.CreatedAt))
		if db.IsNumericOutOfRange(err) {
			return model.ErrOutOfRange
		}
		if err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		out = w
		return r.appendTransaction(ctx, tx, txn)
	})
	return out, err
}

func (r *Repository) Debit(ctx context.Context, txn model.Transaction, allowNegative bool) (model.Wallet, bool, error) {
	var (
		out model.Wallet
		ok  bool
	)
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, txn.CustomerID)
		if err != nil {
			return err
		}
		if !allowNegative && w.Balance.LessThan(txn.Amount) {
			out = w
			return nil
		}
		if out, err = debitWallet(ctx, tx, txn); err != nil {
			return err
		}
		ok = true
		return r.appendTransaction(ctx, tx, txn)
	})
	if err != nil {
		return model.Wallet{}, false, err
	}
	return out, ok, nil
}

func (r *Repository) ListTransactions(ctx context.Context, customerID string, limit int) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, customer_id, kind, service, amount::text, COALESCE(appointment_id::text, ''), created_at
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			t      model.Transaction
			kind   string
			amount string
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &kind, &t.Service, &amount, &t.AppointmentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = model.TransactionKind(kind)
		if t.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func lockWallet(ctx context.Context, tx pgx.Tx, customerID string) (model.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE customer_id = $1 FOR UPDATE`, customerID))
	if db.IsNotFound(err) {
		return model.Wallet{}, model.ErrNotFound
	}
	return w, err
}

// debitWallet also bumps the visit statistics kept on the wallet row.
func debitWallet(ctx context.Context, tx pgx.Tx, txn model.Transaction) (model.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $2::numeric,
			total_spent = total_spent + $2::numeric,
			visit_count = visit_count + 1,
			last_visit = $3,
			updated_at = $3
		WHERE customer_id = $1
		RETURNING `+walletColumns,
		txn.CustomerID, txn.Amount.String(), txn.CreatedAt))
	if err != nil {
		return model.Wallet{}, fmt.Errorf("debit wallet: %w", err)
	}
	return w, nil
}

func (r *Repository) appendTransaction(ctx context.Context, tx pgx.Tx, txn model.Transaction) error {
	var appointmentID any
	if txn.AppointmentID != "" {
		appointmentID = txn.AppointmentID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, customer_id, kind, service, amount, appointment_id, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	`, txn.ID, txn.CustomerID, string(txn.Kind), txn.Service, txn.Amount.String(), appointmentID, txn.CreatedAt); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return r.emit(ctx, tx, "wallet", txn.CustomerID, outbox.TopicTransactionRecorded, txn)
}
