package delivery

import (
	"context"
	"log/slog"

	"superiorweather/internal/types"
)

// Sink delivers a due notification to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n types.ScheduledNotification) error
}

// LogSink writes each notification as a structured log line. It stands in for
// the device notification centre when no other sink is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n types.ScheduledNotification) error {
	s.logger.InfoContext(ctx, "notification delivered",
		slog.String("notification_id", n.ID),
		slog.String("channel", n.Channel),
		slog.String("kind", string(n.Kind)),
		slog.String("title", n.Title),
		slog.String("body", n.Body),
		slog.Bool("play_sound", n.PlaySound),
		slog.Bool("vibrate", n.Vibrate),
	)
	return nil
}
