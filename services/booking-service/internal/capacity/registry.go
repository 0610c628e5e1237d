package capacity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

const DefaultCapacity = 2

type Store interface {
	GetSlotConfig(ctx context.Context, label string) (model.SlotConfig, error)
	ListSlotConfigs(ctx context.Context) ([]model.SlotConfig, error)
	UpsertSlotConfig(ctx context.Context, cfg model.SlotConfig) (model.SlotConfig, error)
}

// Registry resolves per-label seat capacity. Labels without a stored
// config use the process default.
type Registry struct {
	store      Store
	grid       *slots.Grid
	defaultCap int
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewRegistry(store Store, grid *slots.Grid, defaultCap int, pub events.Publisher, logger *slog.Logger) *Registry {
	if defaultCap < 0 {
		defaultCap = DefaultCapacity
	}
	if pub == nil {
		pub = events.Discard
	}
	return &Registry{store: store, grid: grid, defaultCap: defaultCap, events: pub, logger: logger, now: time.Now}
}

func (r *Registry) Default() int { return r.defaultCap }

func (r *Registry) Capacity(ctx context.Context, label string) (int, error) {
	cfg, err := r.store.GetSlotConfig(ctx, label)
	if errors.Is(err, model.ErrNotFound) {
		return r.defaultCap, nil
	}
	if err != nil {
		return 0, model.Unknown("read slot capacity", err)
	}
	return cfg.Capacity, nil
}

// SetCapacity stores a new capacity for label. Zero closes the slot to new
// bookings; existing appointments are untouched.
func (r *Registry) SetCapacity(ctx context.Context, actor model.Actor, label string, capacity int) (model.SlotConfig, error) {
	if !actor.IsAdmin() {
		return model.SlotConfig{}, model.Errorf(model.CodeForbidden, "only admins can change slot capacity")
	}
	if !r.grid.Valid(label) {
		return model.SlotConfig{}, model.NewError(model.CodeInvalidRequest, "unknown slot label", map[string]any{"slot_label": label})
	}
	if capacity < 0 {
		return model.SlotConfig{}, model.Errorf(model.CodeInvalidRequest, "capacity must be >= 0")
	}

	saved, err := r.store.UpsertSlotConfig(ctx, model.SlotConfig{Label: label, Capacity: capacity, UpdatedAt: r.now().UTC()})
	if err != nil {
		return model.SlotConfig{}, model.Unknown("save slot capacity", err)
	}
	r.logger.Info("slot capacity changed", "slot_label", label, "capacity", capacity, "actor", actor.ID)
	r.events.Publish(ctx, events.CapacitySet(saved))
	return saved, nil
}

// Snapshot returns the effective config of every grid label in day order.
func (r *Registry) Snapshot(ctx context.Context) ([]model.SlotConfig, error) {
	stored, err := r.store.ListSlotConfigs(ctx)
	if err != nil {
		return nil, model.Unknown("list slot capacity", err)
	}
	byLabel := make(map[string]model.SlotConfig, len(stored))
	for _, cfg := range stored {
		byLabel[cfg.Label] = cfg
	}
	labels := r.grid.Labels()
	out := make([]model.SlotConfig, 0, len(labels))
	for _, label := range labels {
		cfg, ok := byLabel[label]
		if !ok {
			cfg = model.SlotConfig{Label: label, Capacity: r.defaultCap}
		}
		out = append(out, cfg)
	}
	return out, nil
}
