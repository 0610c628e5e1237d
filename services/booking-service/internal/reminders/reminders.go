// Package reminders notifies customers the evening before a confirmed
// appointment.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

const DefaultSchedule = "0 20 * * *"

type Store interface {
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
}

type Job struct {
	store      Store
	grid       *slots.Grid
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewJob(store Store, grid *slots.Grid, dispatcher *notify.Dispatcher, logger *slog.Logger) *Job {
	return &Job{store: store, grid: grid, dispatcher: dispatcher, logger: logger, now: time.Now}
}

func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

// Run sends one reminder per confirmed appointment on the next civil day
// and returns how many were sent.
func (j *Job) Run(ctx context.Context) (int, error) {
	day := j.grid.DateOf(j.now()).AddDays(1)
	from, to := j.grid.DayBounds(day)
	appts, err := j.store.ListAppointments(ctx, model.AppointmentFilter{
		Status: model.StatusConfirmed,
		From:   from,
		To:     to,
		Limit:  500,
	})
	if err != nil {
		return 0, fmt.Errorf("list confirmed appointments for %s: %w", day, err)
	}
	for _, a := range appts {
		at := a.Instant.In(j.grid.Location()).Format("15:04")
		j.dispatcher.Send(ctx, notify.Notification{
			CustomerID: a.CustomerID,
			Title:      "Appointment reminder",
			Message:    fmt.Sprintf("Your %s appointment is tomorrow (%s) at %s.", a.ServiceName, day, at),
			Kind:       notify.KindInfo,
		})
	}
	return len(appts), nil
}

// Schedule registers Run on c. An empty spec uses DefaultSchedule.
func (j *Job) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := j.Run(ctx)
		if err != nil {
			j.logger.Error("reminder run failed", "err", err)
			return
		}
		j.logger.Info("reminders sent", "count", n)
	})
}
