package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/outbox"
)

func (r *Repository) GetSlotConfig(ctx context.Context, label string) (model.SlotConfig, error) {
	var cfg model.SlotConfig
	err := r.pool.QueryRow(ctx, `
		SELECT slot_label, capacity, updated_at FROM slot_configs WHERE slot_label = $1
	`, label).Scan(&cfg.Label, &cfg.Capacity, &cfg.UpdatedAt)
	if db.IsNotFound(err) {
		return model.SlotConfig{}, model.ErrNotFound
	}
	return cfg, err
}

func (r *Repository) ListSlotConfigs(ctx context.Context) ([]model.SlotConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT slot_label, capacity, updated_at FROM slot_configs ORDER BY slot_label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SlotConfig
	for rows.Next() {
		var cfg model.SlotConfig
		if err := rows.Scan(&cfg.Label, &cfg.Capacity, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertSlotConfig(ctx context.Context, cfg model.SlotConfig) (model.SlotConfig, error) {
	var saved model.SlotConfig
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO slot_configs (slot_label, capacity, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (slot_label) DO UPDATE
			SET capacity = EXCLUDED.capacity, updated_at = EXCLUDED.updated_at
			RETURNING slot_label, capacity, updated_at
		`, cfg.Label, cfg.Capacity, cfg.UpdatedAt).Scan(&saved.Label, &saved.Capacity, &saved.UpdatedAt); err != nil {
			return err
		}
		return r.emit(ctx, tx, "slot", saved.Label, outbox.TopicCapacityChanged, saved)
	})
	return saved, err
}
