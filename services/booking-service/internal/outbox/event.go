package outbox

import (
	"encoding/json"
	"fmt"
)

// Topics. The Kafka topic equals the event type.
const (
	TopicAppointmentCreated       = "booking.appointment.created.v1"
	TopicAppointmentStatusChanged = "booking.appointment.status_changed.v1"
	TopicAppointmentDeleted       = "booking.appointment.deleted.v1"
	TopicCapacityChanged          = "booking.slot.capacity_changed.v1"
	TopicTransactionRecorded      = "wallet.transaction.recorded.v1"
	TopicNotificationRequested    = "notification.requested.v1"
)

// Event is the envelope written to outbox_events in the same transaction
// as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload as JSON.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{AggregateType: aggregateType, AggregateID: aggregateID, EventType: eventType, Payload: b}, nil
}
