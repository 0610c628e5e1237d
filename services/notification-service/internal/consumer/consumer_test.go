package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestRunRetriesThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}}, cancel: cancel}

	calls := map[int64]int{}
	handler := func(_ context.Context, msg kafka.Message) error {
		calls[msg.Offset]++
		if msg.Offset == 1 && calls[1] < 2 {
			return errors.New("transient")
		}
		return nil
	}
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), reader, handler)
	c.backoff = 0

	c.Run(ctx)

	if calls[1] != 2 || calls[2] != 1 {
		t.Fatalf("calls=%v", calls)
	}
	if len(reader.committed) != 2 {
		t.Fatalf("committed=%v", reader.committed)
	}
}
