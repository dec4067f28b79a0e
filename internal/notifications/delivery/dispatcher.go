package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"superiorweather/internal/notifications/core"
	"superiorweather/internal/types"
)

const (
	// DefaultBatchSize caps how many due notifications one tick handles.
	DefaultBatchSize = 100

	// sinkConcurrencyLimit caps concurrent sink deliveries within a tick.
	sinkConcurrencyLimit = 8
)

// DispatcherConfig holds dependencies for a Dispatcher.
type DispatcherConfig struct {
	Store     Store
	Sinks     []Sink
	Clock     types.Clock
	Metrics   core.NotificationMetrics
	Logger    types.Logger
	BatchSize int
	// Location is the zone daily entries keep their wall-clock time in.
	// Nil keeps whatever zone the store returns.
	Location *time.Location
}

// Dispatcher delivers due notifications. Sink failures are logged and
// counted; they are never retried.
type Dispatcher struct {
	store     Store
	sinks     []Sink
	clock     types.Clock
	metrics   core.NotificationMetrics
	logger    types.Logger
	batchSize int
	location  *time.Location

	// Serializes ticks so a slow sink cannot cause double delivery.
	mu sync.Mutex
}

// TickResult summarizes one dispatcher pass.
type TickResult struct {
	Due       int
	Delivered int
	Failed    int
	Advanced  int
	Removed   int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:     cfg.Store,
		sinks:     cfg.Sinks,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		location:  cfg.Location,
	}
	if d.clock == nil {
		d.clock = types.RealClock{}
	}
	if d.metrics == nil {
		d.metrics = core.NoopMetrics{}
	}
	if d.batchSize <= 0 {
		d.batchSize = DefaultBatchSize
	}
	return d
}

// Tick delivers every notification due at the current time to every sink,
// then advances daily entries to their next occurrence and removes one-shot
// entries. Only a failure to read the store is returned.
func (d *Dispatcher) Tick(ctx context.Context) (TickResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	due, err := d.store.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("list due notifications: %w", err)
	}

	res := TickResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(sinkConcurrencyLimit)

	for _, n := range due {
		for _, sink := range d.sinks {
			g.Go(func() error {
				err := sink.Deliver(gCtx, n)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Failed++
					d.metrics.RecordDelivery(gCtx, sink.Name(), core.MetricFailed)
					d.logger.Error("notification delivery failed",
						"notification_id", n.ID,
						"sink", sink.Name(),
						"error", err,
					)
					// Do not propagate; other sinks and notifications proceed.
					return nil
				}
				res.Delivered++
				d.metrics.RecordDelivery(gCtx, sink.Name(), core.MetricSuccess)
				return nil
			})
		}
	}
	_ = g.Wait()

	for _, n := range due {
		d.advance(ctx, n, now, &res)
	}

	d.logger.Info("dispatch tick complete",
		"due", res.Due,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return res, nil
}

func (d *Dispatcher) advance(ctx context.Context, n types.ScheduledNotification, now time.Time, res *TickResult) {
	if n.Repeat == types.RepeatDaily {
		next := n.NextAfter(now, d.location)
		err := d.store.Reschedule(ctx, n.ID, next)
		switch {
		case err == nil:
			res.Advanced++
		case isNotFound(err):
			// Cancelled by a concurrent scheduling cycle.
		default:
			d.logger.Error("failed to advance daily notification",
				"notification_id", n.ID,
				"next_fire_at", next.Format(time.RFC3339),
				"error", err,
			)
		}
		return
	}

	if err := d.store.Delete(ctx, n.ID); err != nil {
		d.logger.Error("failed to remove fired notification",
			"notification_id", n.ID,
			"error", err,
		)
		return
	}
	res.Removed++
}

func isNotFound(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundNotification
}
