package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	var got []Notification
	d := NewDispatcher(SinkFunc(func(_ context.Context, n Notification) error {
		got = append(got, n)
		return errors.New("sink down")
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.Send(context.Background(), Notification{CustomerID: "c1", Title: "t", Message: "m"})
	if len(got) != 1 || got[0].Kind != KindInfo {
		t.Fatalf("expected one info notification, got %+v", got)
	}
}

func TestDispatcherIgnoresCancelledCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var delivered bool
	d := NewDispatcher(SinkFunc(func(ctx context.Context, _ Notification) error {
		delivered = ctx.Err() == nil
		return nil
	}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Send(ctx, Notification{Title: "t"})
	if !delivered {
		t.Fatalf("notification should not inherit caller cancellation")
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Send(context.Background(), Notification{Title: "t"})
}
