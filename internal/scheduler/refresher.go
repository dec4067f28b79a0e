// Package scheduler runs weather fetch cycles. A cycle fetches the current
// conditions, validates them and hands the snapshot to the notification
// scheduler. The daemon's cron entries, the HTTP API and the Lambda refresh
// worker all drive the same Refresher.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"superiorweather/internal/notifications/core"
	"superiorweather/internal/types"
)

// WeatherProvider fetches the current conditions at a location.
// *external.WeatherClient satisfies it.
type WeatherProvider interface {
	Current(ctx context.Context, loc types.Location) (types.Snapshot, error)
}

// SnapshotScheduler installs the notifications for one snapshot.
// *core.Scheduler satisfies it.
type SnapshotScheduler interface {
	ScheduleForSnapshot(ctx context.Context, snap types.Snapshot) core.Report
}

// RefreshMetrics counts fetch cycles.
type RefreshMetrics interface {
	RecordRefresh(ctx context.Context, reason types.RefreshReason, result core.MetricResult)
}

type noopRefreshMetrics struct{}

func (noopRefreshMetrics) RecordRefresh(context.Context, types.RefreshReason, core.MetricResult) {}

// RefreshInput starts one cycle. An empty Reason means manual.
type RefreshInput struct {
	Location types.Location
	Reason   types.RefreshReason
}

// RefreshResult is the outcome of a successful cycle.
type RefreshResult struct {
	Snapshot types.Snapshot      `json:"snapshot"`
	Report   core.Report         `json:"report"`
	Reason   types.RefreshReason `json:"reason"`
	Duration time.Duration       `json:"-"`
}

// RefresherConfig wires a Refresher.
type RefresherConfig struct {
	Weather   WeatherProvider
	Scheduler SnapshotScheduler
	Metrics   RefreshMetrics
	Clock     types.Clock
	Logger    types.Logger
}

// Refresher runs fetch cycles and remembers the latest snapshot.
type Refresher struct {
	weather   WeatherProvider
	scheduler SnapshotScheduler
	metrics   RefreshMetrics
	clock     types.Clock
	logger    types.Logger

	mu     sync.RWMutex
	latest *types.Snapshot
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Metrics == nil {
		cfg.Metrics = noopRefreshMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	return &Refresher{
		weather:   cfg.Weather,
		scheduler: cfg.Scheduler,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

// ValidReason reports whether r is a known trigger reason.
func ValidReason(r types.RefreshReason) bool {
	switch r {
	case types.RefreshLocationChange, types.RefreshHourlyCheck, types.RefreshBackgroundTimer, types.RefreshManual:
		return true
	}
	return false
}

// Refresh runs one cycle. Fetch and validation failures are returned and
// leave the pending schedule untouched; scheduling failures are only
// counted in the report.
func (r *Refresher) Refresh(ctx context.Context, in RefreshInput) (RefreshResult, error) {
	start := r.clock.Now()
	if in.Reason == "" {
		in.Reason = types.RefreshManual
	}
	if !ValidReason(in.Reason) {
		return RefreshResult{}, types.NewAppError(types.ErrCodeValidationInvalidReason, "unknown refresh reason", nil).
			WithDetails(map[string]any{"reason": string(in.Reason)})
	}

	logger := types.LoggerOr(ctx, r.logger).With("reason", string(in.Reason))

	snap, err := r.weather.Current(ctx, in.Location)
	if err != nil {
		r.metrics.RecordRefresh(ctx, in.Reason, core.MetricFailed)
		logger.Error("weather fetch failed", "error", err.Error())
		return RefreshResult{}, err
	}

	if err := ValidateSnapshot(snap); err != nil {
		r.metrics.RecordRefresh(ctx, in.Reason, core.MetricFailed)
		logger.Warn("snapshot rejected", "error", err.Error())
		return RefreshResult{}, err
	}

	r.mu.Lock()
	r.latest = &snap
	r.mu.Unlock()

	report := r.scheduler.ScheduleForSnapshot(ctx, snap)
	r.metrics.RecordRefresh(ctx, in.Reason, core.MetricSuccess)

	elapsed := r.clock.Now().Sub(start)
	logger.Info("refresh cycle complete",
		"conditions", snap.Conditions,
		"alerts", len(report.Alerts),
		"scheduled", report.Scheduled,
		"fired", report.Fired,
		"failures", report.Failures,
		"duration_ms", elapsed.Milliseconds(),
	)

	return RefreshResult{
		Snapshot: snap,
		Report:   report,
		Reason:   in.Reason,
		Duration: elapsed,
	}, nil
}

// Latest returns the snapshot of the most recent successful cycle.
func (r *Refresher) Latest() (types.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return types.Snapshot{}, false
	}
	return *r.latest, true
}

// ValidateSnapshot rejects snapshots that cannot drive the rule engine.
func ValidateSnapshot(snap types.Snapshot) error {
	if strings.TrimSpace(snap.Conditions) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingCondition, "snapshot has no conditions text", nil)
	}
	return nil
}
