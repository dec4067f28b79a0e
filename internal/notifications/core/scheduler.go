package core

import (
	"context"
	"sync"
	"time"

	"superiorweather/internal/alerts"
	"superiorweather/internal/types"
)

// Scheduler re-synchronizes the pending notification schedule with a fresh
// snapshot. It is stateless between calls apart from the mutex that keeps
// one scheduling operation in flight at a time.
type Scheduler struct {
	deliverer Deliverer
	metrics   NotificationMetrics
	policy    Policy
	clock     types.Clock
	logger    types.Logger

	mu sync.Mutex
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the clock used to compute fire times.
func WithClock(c types.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m NotificationMetrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// NewScheduler creates a Scheduler. A zero Location in policy is treated as
// UTC.
func NewScheduler(d Deliverer, policy Policy, logger types.Logger, opts ...SchedulerOption) *Scheduler {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	s := &Scheduler{
		deliverer: d,
		metrics:   NoopMetrics{},
		policy:    policy,
		clock:     types.RealClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the schedule the scheduler installs.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// ScheduleForSnapshot replaces every pending notification with the schedule
// derived from snap:
//  1. cancel all pending notifications;
//  2. schedule the morning summary;
//  3. generate alerts;
//  4. compose the full-detail body;
//  5. schedule it at each detail time, repeating daily;
//  6. fire each alert immediately, staggered by AlertStagger.
//
// Delivery failures are logged and counted in the Report; they never abort
// the batch.
func (s *Scheduler) ScheduleForSnapshot(ctx context.Context, snap types.Snapshot) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	p := s.policy
	logger := types.LoggerOr(ctx, s.logger)
	var report Report

	if err := s.deliverer.CancelAll(ctx); err != nil {
		report.Failures++
		logger.Error("failed to cancel pending notifications", "error", err)
	} else {
		report.Cancelled = true
	}

	s.schedule(ctx, &report, ScheduleRequest{
		Channel: p.Channel,
		Title:   p.UpdateTitle,
		Message: MorningSummary(snap),
		FireAt:  p.MorningTime.Next(now, p.Location),
		Repeat:  p.MorningRepeat,
		Kind:    types.KindMorningSummary,
	})

	active := alerts.GenerateAlerts(snap)
	report.Alerts = active
	s.metrics.RecordAlerts(ctx, len(active))

	detail := FullDetail(snap, active)
	for _, t := range p.DetailTimes {
		s.schedule(ctx, &report, ScheduleRequest{
			Channel: p.Channel,
			Title:   p.UpdateTitle,
			Message: detail,
			FireAt:  t.Next(now, p.Location),
			Repeat:  types.RepeatDaily,
			Kind:    types.KindDetailUpdate,
		})
	}

	for i, msg := range active {
		req := FireRequest{
			Channel:   p.Channel,
			Title:     p.AlertTitle,
			Message:   msg,
			PlaySound: true,
			Vibrate:   true,
			Delay:     time.Duration(i) * p.AlertStagger,
			Kind:      types.KindWeatherAlert,
		}
		if err := s.deliverer.FireNow(ctx, req); err != nil {
			report.Failures++
			s.metrics.RecordScheduled(ctx, req.Kind, MetricFailed)
			logger.Error("failed to fire alert notification",
				"index", i,
				"error", err,
			)
			continue
		}
		report.Fired++
		s.metrics.RecordScheduled(ctx, req.Kind, MetricSuccess)
	}

	logger.Info("notification schedule replaced",
		"conditions", snap.Conditions,
		"alerts", len(active),
		"scheduled", report.Scheduled,
		"fired", report.Fired,
		"failures", report.Failures,
	)

	return report
}

func (s *Scheduler) schedule(ctx context.Context, report *Report, req ScheduleRequest) {
	if err := s.deliverer.ScheduleAt(ctx, req); err != nil {
		report.Failures++
		s.metrics.RecordScheduled(ctx, req.Kind, MetricFailed)
		types.LoggerOr(ctx, s.logger).Error("failed to schedule notification",
			"kind", string(req.Kind),
			"fire_at", req.FireAt.Format(time.RFC3339),
			"error", err,
		)
		return
	}
	report.Scheduled++
	s.metrics.RecordScheduled(ctx, req.Kind, MetricSuccess)
}
