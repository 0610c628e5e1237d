package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
)

const DefaultChannel = "frontdesk:feed"

// RedisBridge publishes events on a Redis channel and relays events from
// other instances into the local publisher.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	local   events.Publisher
	origin  string
	logger  *slog.Logger
}

type envelope struct {
	Origin string       `json:"origin"`
	Event  events.Event `json:"event"`
}

func NewRedisBridge(rdb *redis.Client, channel string, local events.Publisher, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{rdb: rdb, channel: channel, local: local, origin: uuid.NewString(), logger: logger}
}

// Publish delivers locally first, then fans out to the other instances.
func (b *RedisBridge) Publish(ctx context.Context, e events.Event) {
	b.local.Publish(ctx, e)

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: e})
	if err != nil {
		b.logger.Error("encode feed relay", "event_type", e.Type, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("feed relay publish failed", "event_type", e.Type, "err", err)
	}
}

// Run subscribes until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("feed relay subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, payload string) bool {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("drop malformed feed relay", "err", err)
		return false
	}
	if env.Origin == b.origin || env.Event.EntityKey() == "" {
		return false
	}
	b.local.Publish(ctx, env.Event)
	return true
}
