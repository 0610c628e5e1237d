// Package notifications stores notification requests coming from
// booking-service and texts store-wide alerts to the front desk.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/storefront-labs/frontdesk/libs/kafkax"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/sms"
)

const (
	StatusStored = "stored"
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Notification struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Provider   string    `json:"provider,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store interface {
	// Save records the event in the inbox and stores n in one unit of
	// work. inserted is false when eventID was already processed.
	Save(ctx context.Context, eventID, eventType string, n Notification) (saved Notification, inserted bool, err error)
	SetDelivery(ctx context.Context, id int64, status, provider, errMsg string) error
	List(ctx context.Context, customerID string, limit int) ([]Notification, error)
}

type Processor struct {
	store   Store
	sender  sms.Sender
	alertTo []string
	logger  *slog.Logger
}

// NewProcessor texts store-wide alerts to every number in alertTo.
func NewProcessor(store Store, sender sms.Sender, alertTo []string, logger *slog.Logger) *Processor {
	return &Processor{store: store, sender: sender, alertTo: alertTo, logger: logger}
}

type payload struct {
	NotificationID string `json:"notification_id"`
	CustomerID     string `json:"customer_id"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Kind           string `json:"kind"`
}

// Handle is the consumer handler for notification.requested events.
// Malformed messages are logged and skipped.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	var in payload
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		p.logger.Error("invalid notification payload", "err", err, "offset", msg.Offset)
		return nil
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Title == "" && in.Message == "" {
		p.logger.Error("notification without content", "offset", msg.Offset)
		return nil
	}
	if in.Kind == "" {
		in.Kind = "info"
	}

	meta := kafkax.ExtractEventMeta(msg)
	eventID := kafkax.HeaderValue(msg.Headers, "event_id")
	if eventID == "" {
		eventID = in.NotificationID
	}
	if eventID == "" {
		p.logger.Error("notification without event id", "offset", msg.Offset)
		return nil
	}

	n, inserted, err := p.store.Save(ctx, eventID, meta.EventType, Notification{
		EventID:    eventID,
		CustomerID: in.CustomerID,
		Title:      in.Title,
		Message:    in.Message,
		Kind:       in.Kind,
		Status:     StatusStored,
	})
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	if !inserted {
		p.logger.Info("duplicate event ignored", "event_id", eventID)
		return nil
	}

	if p.wantsSMS(n) {
		p.text(ctx, n)
	}
	p.logger.Info("notification stored", "id", n.ID, "customer_id", n.CustomerID, "kind", n.Kind)
	return nil
}

// wantsSMS is true for alerts addressed to the whole store.
func (p *Processor) wantsSMS(n Notification) bool {
	return n.CustomerID == "" && n.Kind == "alert" && p.sender != nil && len(p.alertTo) > 0
}

func (p *Processor) text(ctx context.Context, n Notification) {
	body := n.Title
	if n.Message != "" {
		body = n.Title + ": " + n.Message
	}
	status, errMsg := StatusSent, ""
	for _, to := range p.alertTo {
		if err := p.sender.Send(ctx, to, body); err != nil {
			p.logger.Error("sms send failed", "err", err, "recipient", to)
			status, errMsg = StatusFailed, err.Error()
		}
	}
	if err := p.store.SetDelivery(ctx, n.ID, status, p.sender.ProviderID(), errMsg); err != nil {
		p.logger.Error("record sms delivery failed", "id", n.ID, "err", err)
	}
}
