package notify

import (
	"context"
	"log/slog"
	"time"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindAlert   Kind = "alert"
	KindSuccess Kind = "success"
)

// Notification targets one customer, or the whole store when CustomerID is
// empty.
type Notification struct {
	CustomerID string `json:"customer_id,omitempty"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Kind       Kind   `json:"kind"`
}

type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

type SinkFunc func(context.Context, Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Dispatcher is write-only for its callers: delivery failures are logged
// and never surface to the operation that triggered them.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
}

func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger, timeout: 3 * time.Second}
}

func (d *Dispatcher) Send(ctx context.Context, n Notification) {
	if d == nil || d.sink == nil {
		return
	}
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.sink.Notify(ctx, n); err != nil {
		d.logger.Warn("notification dropped", "customer_id", n.CustomerID, "title", n.Title, "err", err)
	}
}
