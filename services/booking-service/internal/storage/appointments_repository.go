package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
)

const appointmentColumns = `id::text, customer_id, service_name, appointment_instant, status, notes, version, created_at, updated_at`

// seatLockNamespace is the first key of the transaction advisory lock that
// serialises bookings for one instant.
const seatLockNamespace int32 = 7301

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(&a.ID, &a.CustomerID, &a.ServiceName, &a.Instant, &status, &a.Notes, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReserveSeat takes a transaction advisory lock on the instant, so the
// count and the insert cannot interleave with another booking for it.
func (r *Repository) ReserveSeat(ctx context.Context, appt model.Appointment, capacity int) (model.Appointment, int, bool, error) {
	var (
		saved  model.Appointment
		booked int
		ok     bool
	)
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, seatLockNamespace, seatLockKey(appt.Instant)); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM appointments
			WHERE appointment_instant = $1 AND status <> 'cancelled'
		`, appt.Instant).Scan(&booked); err != nil {
			return fmt.Errorf("count seats: %w", err)
		}
		if booked >= capacity {
			return nil
		}

		var err error
		saved, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (id, customer_id, service_name, appointment_instant, status, notes, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+appointmentColumns,
			appt.ID, appt.CustomerID, appt.ServiceName, appt.Instant, string(appt.Status), appt.Notes, appt.Version, appt.CreatedAt, appt.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		booked++
		ok = true
		return r.emit(ctx, tx, "appointment", saved.ID, outbox.TopicAppointmentCreated, saved)
	})
	if err != nil {
		return model.Appointment{}, 0, false, err
	}
	return saved, booked, ok, nil
}

// seatLockKey is minutes since the epoch; grid instants are whole minutes.
func seatLockKey(instant time.Time) int32 {
	return int32(instant.Unix() / 60)
}

func (r *Repository) CountActiveAt(ctx context.Context, instant time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE appointment_instant = $1 AND status <> 'cancelled'
	`, instant).Scan(&n)
	return n, err
}

func (r *Repository) ListActiveBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_instant >= $1 AND appointment_instant < $2 AND status <> 'cancelled'
		ORDER BY appointment_instant
	`, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *Repository) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("appointment_instant >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("appointment_instant < $%d", f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY appointment_instant DESC, id LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *Repository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, model.ErrNotFound
	}
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, err
}

func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, bool, error) {
	if !validID(id) {
		return model.Appointment{}, false, model.ErrNotFound
	}
	var (
		out model.Appointment
		ok  bool
	)
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $3, version = version + 1, updated_at = $4
			WHERE id = $1 AND status = $2
			RETURNING `+appointmentColumns,
			id, string(from), string(to), at))
		if db.IsNotFound(err) {
			current, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
			if db.IsNotFound(err) {
				return model.ErrNotFound
			}
			out = current
			return err
		}
		if err != nil {
			return err
		}
		out, ok = a, true
		return r.emit(ctx, tx, "appointment", a.ID, outbox.TopicAppointmentStatusChanged, statusChange{Appointment: a, From: from})
	})
	if err != nil {
		return model.Appointment{}, false, err
	}
	return out, ok, nil
}

func (r *Repository) DeleteAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, model.ErrNotFound
	}
	var out model.Appointment
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAppointment(tx.QueryRow(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentColumns, id))
		if db.IsNotFound(err) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}
		out = a
		return r.emit(ctx, tx, "appointment", a.ID, outbox.TopicAppointmentDeleted, a)
	})
	return out, err
}

// validID filters ids that cannot be a uuid column value.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type statusChange struct {
	model.Appointment
	From model.Status `json:"from_status"`
}
