package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
)

// Repository is the Postgres implementation of every booking-service
// store. Each mutation writes its outbox events in the same transaction.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) emit(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload any) error {
	evt, err := outbox.NewEvent(aggregateType, aggregateID, eventType, payload)
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write %s outbox event: %w", eventType, err)
	}
	return nil
}

// Money columns travel as text so NUMERIC precision survives both ways.
func parseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse money %q: %w", raw, err)
	}
	return d, nil
}
