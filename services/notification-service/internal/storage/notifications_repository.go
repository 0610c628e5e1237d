package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/notifications"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save writes the inbox row and the notification together, so a crash
// between them cannot mark an event as seen without storing it.
func (r *Repository) Save(ctx context.Context, eventID, eventType string, n notifications.Notification) (notifications.Notification, bool, error) {
	inserted := false
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO inbox_events (event_id, event_type)
			VALUES ($1, $2)
			ON CONFLICT (event_id) DO NOTHING
		`, eventID, eventType)
		if err != nil {
			return fmt.Errorf("record inbox event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		var customerID any
		if n.CustomerID != "" {
			customerID = n.CustomerID
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO notifications (event_id, customer_id, title, message, kind, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, eventID, customerID, n.Title, n.Message, n.Kind, n.Status).Scan(&n.ID, &n.CreatedAt); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return notifications.Notification{}, false, err
	}
	return n, inserted, nil
}

func (r *Repository) SetDelivery(ctx context.Context, id int64, status, provider, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $2, provider = NULLIF($3, ''), error = NULLIF($4, ''), delivered_at = now()
		WHERE id = $1
	`, id, status, provider, errMsg)
	return err
}

// List returns the newest notifications; an empty customerID lists all.
func (r *Repository) List(ctx context.Context, customerID string, limit int) ([]notifications.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, COALESCE(customer_id, ''), title, message, kind, status,
			COALESCE(provider, ''), COALESCE(error, ''), created_at
		FROM notifications
		WHERE $1 = '' OR customer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.CustomerID, &n.Title, &n.Message, &n.Kind, &n.Status,
			&n.Provider, &n.Error, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

var _ notifications.Store = (*Repository)(nil)
