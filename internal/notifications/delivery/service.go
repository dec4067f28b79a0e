package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"superiorweather/internal/notifications/core"
	"superiorweather/internal/types"
)

var _ core.Deliverer = (*Service)(nil)

// Service implements core.Deliverer on top of a Store.
type Service struct {
	store  Store
	clock  types.Clock
	logger types.Logger
	newID  func() string
}

// NewService creates a Service. A nil clock uses the system clock.
func NewService(store Store, clock types.Clock, logger types.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger,
		newID:  func() string { return "ntf_" + uuid.New().String() },
	}
}

// CancelAll removes every pending notification.
func (s *Service) CancelAll(ctx context.Context) error {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	s.logger.Info("cancelled pending notifications", "count", n)
	return nil
}

// ScheduleAt stores a notification due at req.FireAt.
func (s *Service) ScheduleAt(ctx context.Context, req core.ScheduleRequest) error {
	if req.FireAt.IsZero() {
		return types.NewAppError(types.ErrCodeValidationMissingField, "fire time is required", nil)
	}
	repeat := req.Repeat
	if repeat == "" {
		repeat = types.RepeatNone
	}
	return s.insert(ctx, types.ScheduledNotification{
		Channel: req.Channel,
		Title:   req.Title,
		Body:    req.Message,
		FireAt:  req.FireAt,
		Repeat:  repeat,
		Kind:    req.Kind,
	})
}

// FireNow stores a one-shot notification due after req.Delay. The dispatcher
// picks it up on its next tick.
func (s *Service) FireNow(ctx context.Context, req core.FireRequest) error {
	delay := req.Delay
	if delay < 0 {
		delay = 0
	}
	return s.insert(ctx, types.ScheduledNotification{
		Channel:   req.Channel,
		Title:     req.Title,
		Body:      req.Message,
		FireAt:    s.clock.Now().Add(delay),
		Repeat:    types.RepeatNone,
		Kind:      req.Kind,
		PlaySound: req.PlaySound,
		Vibrate:   req.Vibrate,
	})
}

// Pending lists every stored notification ordered by fire time.
func (s *Service) Pending(ctx context.Context) ([]types.ScheduledNotification, error) {
	return s.store.ListPending(ctx)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) insert(ctx context.Context, n types.ScheduledNotification) error {
	n.ID = s.newID()
	n.CreatedAt = s.clock.Now().UTC()
	if err := s.store.Insert(ctx, &n); err != nil {
		return fmt.Errorf("store %s notification: %w", n.Kind, err)
	}
	s.logger.Info("notification stored",
		"notification_id", n.ID,
		"kind", string(n.Kind),
		"fire_at", n.FireAt.Format(time.RFC3339),
		"repeat", string(n.Repeat),
	)
	return nil
}
