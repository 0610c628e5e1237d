package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/availability"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/booking"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/handlers"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/memstore"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/storage"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/wallet"
)

// backend is the single store both drivers provide.
type backend interface {
	capacity.Store
	availability.Store
	booking.Store
	lifecycle.Store
	settlement.Store
	wallet.Store
	handlers.AppointmentLister
}

type stores struct {
	slots        capacity.Store
	availability availability.Store
	booking      booking.Store
	lifecycle    lifecycle.Store
	settlement   settlement.Store
	wallet       wallet.Store
	appointments handlers.AppointmentLister
	sink         notify.Sink

	pool   *db.Pool
	outbox *outbox.Publisher
}

func (s stores) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func newStores(b backend, sink notify.Sink) stores {
	return stores{
		slots:        b,
		availability: b,
		booking:      b,
		lifecycle:    b,
		settlement:   b,
		wallet:       b,
		appointments: b,
		sink:         sink,
	}
}

func openStores(ctx context.Context, cfg settings, logger *slog.Logger) (stores, error) {
	if cfg.storageDriver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart and notifications are only logged")
		return newStores(memstore.New(), notify.SinkFunc(func(_ context.Context, n notify.Notification) error {
			logger.Info("notification", "customer_id", n.CustomerID, "title", n.Title, "kind", n.Kind)
			return nil
		})), nil
	}

	pool, err := db.Open(ctx, cfg.databaseURL, db.Options{})
	if err != nil {
		return stores{}, err
	}
	outboxRepo := outbox.NewRepository()
	repo := storage.NewRepository(pool, outboxRepo)
	st := newStores(repo, storage.NewNotificationOutbox(repo))
	st.pool = pool
	st.outbox = outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	return st, nil
}
