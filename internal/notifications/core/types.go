// Package core implements the notification scheduler: on every weather fetch
// it clears the pending schedule and installs a morning summary, three daily
// full-detail updates and one immediate notification per active alert.
//
// The scheduler talks to the delivery subsystem only through Deliverer, so the
// same code drives the in-memory store, the PostgreSQL store, or any test
// double.
package core

import (
	"context"
	"fmt"
	"time"

	"superiorweather/internal/types"
)

// Deliverer is the notification-delivery collaborator. Each call is
// independent; the scheduler never rolls back earlier calls when a later one
// fails.
type Deliverer interface {
	// CancelAll removes every pending notification. It is idempotent.
	CancelAll(ctx context.Context) error

	// ScheduleAt installs a notification for a future wall-clock instant.
	ScheduleAt(ctx context.Context, req ScheduleRequest) error

	// FireNow delivers a notification as soon as possible, after Delay.
	FireNow(ctx context.Context, req FireRequest) error
}

// ScheduleRequest describes a notification to fire at FireAt.
type ScheduleRequest struct {
	Channel string
	Title   string
	Message string
	FireAt  time.Time
	Repeat  types.Repeat
	Kind    types.NotificationKind
}

// FireRequest describes an immediate notification. Delay staggers a batch so
// the delivery system does not coalesce them.
type FireRequest struct {
	Channel   string
	Title     string
	Message   string
	PlaySound bool
	Vibrate   bool
	Delay     time.Duration
	Kind      types.NotificationKind
}

// MetricResult categorizes an outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)

// NotificationMetrics abstracts CloudWatch telemetry for notifications.
type NotificationMetrics interface {
	RecordScheduled(ctx context.Context, kind types.NotificationKind, result MetricResult)
	RecordDelivery(ctx context.Context, channel string, result MetricResult)
	RecordAlerts(ctx context.Context, count int)
}

// NoopMetrics discards every metric. Used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordScheduled(context.Context, types.NotificationKind, MetricResult) {}
func (NoopMetrics) RecordDelivery(context.Context, string, MetricResult)                  {}
func (NoopMetrics) RecordAlerts(context.Context, int)                                     {}

// TimeOfDay is a wall-clock time in 24h format.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String returns the "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Next returns today's occurrence of t in loc, or tomorrow's when today's
// instant is already in the past.
func (t TimeOfDay) Next(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, loc)
	if fire.Before(now) {
		fire = time.Date(local.Year(), local.Month(), local.Day()+1, t.Hour, t.Minute, 0, 0, loc)
	}
	return fire
}

// Policy holds the fixed schedule installed on every cycle.
type Policy struct {
	Channel       string
	UpdateTitle   string
	AlertTitle    string
	Location      *time.Location
	MorningTime   TimeOfDay
	MorningRepeat types.Repeat
	DetailTimes   []TimeOfDay
	AlertStagger  time.Duration
}

// DefaultPolicy is the schedule used when nothing is configured: a daily
// 06:00 morning summary and full-detail updates at 12:00, 16:00 and 00:00.
func DefaultPolicy() Policy {
	return Policy{
		Channel:       "weather-alerts",
		UpdateTitle:   "Weather Update",
		AlertTitle:    "Weather Alert",
		Location:      time.UTC,
		MorningTime:   TimeOfDay{Hour: 6},
		MorningRepeat: types.RepeatDaily,
		DetailTimes:   []TimeOfDay{{Hour: 12}, {Hour: 16}, {Hour: 0}},
		AlertStagger:  time.Second,
	}
}

// Report summarizes one scheduling cycle. Failures are counted, never
// returned as errors.
type Report struct {
	Alerts    []string `json:"alerts"`
	Scheduled int      `json:"scheduled"`
	Fired     int      `json:"fired"`
	Failures  int      `json:"failures"`
	Cancelled bool     `json:"cancelled"`
}
