package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
)

// NotificationOutbox is the notify.Sink that hands notifications to
// notification-service through the outbox.
type NotificationOutbox struct {
	repo *Repository
}

func NewNotificationOutbox(repo *Repository) *NotificationOutbox {
	return &NotificationOutbox{repo: repo}
}

func (n *NotificationOutbox) Notify(ctx context.Context, msg notify.Notification) error {
	aggregateID := msg.CustomerID
	if aggregateID == "" {
		aggregateID = "store"
	}
	payload := struct {
		NotificationID string `json:"notification_id"`
		notify.Notification
	}{NotificationID: uuid.NewString(), Notification: msg}
	return n.repo.pool.InTx(ctx, func(tx pgx.Tx) error {
		return n.repo.emit(ctx, tx, "notification", aggregateID, outbox.TopicNotificationRequested, payload)
	})
}

var _ notify.Sink = (*NotificationOutbox)(nil)
