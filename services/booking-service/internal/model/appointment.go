package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Appointment is one customer's seat at an instant. Version increases with
// every status change.
type Appointment struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	ServiceName string    `json:"service_name"`
	Instant     time.Time `json:"appointment_instant"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HoldsSeat reports whether the appointment counts against capacity.
func (a Appointment) HoldsSeat() bool {
	return a.Status != StatusCancelled
}

type SlotConfig struct {
	Label     string    `json:"slot_label"`
	Capacity  int       `json:"capacity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppointmentFilter narrows appointment history queries. Zero fields do
// not filter.
type AppointmentFilter struct {
	CustomerID string
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if f.CustomerID != "" && a.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && a.Instant.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.Instant.Before(f.To) {
		return false
	}
	return true
}
