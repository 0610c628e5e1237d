package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-labs/frontdesk/libs/kafkax"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader   Reader
	logger   *slog.Logger
	handler  Handler
	attempts int
	backoff  time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewWithReader(logger, reader, handler)
}

func NewWithReader(logger *slog.Logger, reader Reader, handler Handler) *Consumer {
	return &Consumer{reader: reader, logger: logger, handler: handler, attempts: 3, backoff: time.Second}
}

// Run handles messages until ctx is done. A message is committed once its
// handler succeeds or has failed every attempt; handlers dedupe by event id
// so a redelivery after a crash is harmless.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	ctxSpan, span := otel.Tracer("kafka").Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.handler(ctxSpan, msg); err == nil {
			return
		}
		c.logger.Warn("handler error", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if attempt < c.attempts && !sleep(ctx, c.backoff*time.Duration(attempt)) {
			break
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "handler failed")
	c.logger.Error("event dropped after retries", "event_id", meta.EventID, "event_type", meta.EventType, "err", err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
