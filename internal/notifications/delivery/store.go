// Package delivery is the notification-delivery subsystem. Service accepts
// schedule/fire/cancel requests from the scheduler and keeps them in a Store;
// Dispatcher wakes periodically and hands due notifications to the Sinks.
package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"superiorweather/internal/types"
)

// Store retains pending notifications. Implementations must be safe for
// concurrent use. db.ScheduleRepository and MemoryStore satisfy it.
type Store interface {
	DeleteAll(ctx context.Context) (int, error)
	Insert(ctx context.Context, n *types.ScheduledNotification) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledNotification, error)
	ListPending(ctx context.Context) ([]types.ScheduledNotification, error)
	Reschedule(ctx context.Context, id string, fireAt time.Time) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// MemoryStore is an in-process Store. Its contents are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]types.ScheduledNotification
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]types.ScheduledNotification)}
}

func (m *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	m.items = make(map[string]types.ScheduledNotification)
	return n, nil
}

func (m *MemoryStore) Insert(_ context.Context, n *types.ScheduledNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[n.ID]; exists {
		return types.NewAppError(types.ErrCodeInternalDB, "scheduled notification id already exists", nil).
			WithDetails(map[string]any{"id": n.ID})
	}
	m.items[n.ID] = *n
	return nil
}

func (m *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]types.ScheduledNotification, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	due := []types.ScheduledNotification{}
	for _, n := range m.items {
		if !n.FireAt.After(now) {
			due = append(due, n)
		}
	}
	sortByFireTime(due)
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStore) ListPending(_ context.Context) ([]types.ScheduledNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ScheduledNotification, 0, len(m.items))
	for _, n := range m.items {
		out = append(out, n)
	}
	sortByFireTime(out)
	return out, nil
}

func (m *MemoryStore) Reschedule(_ context.Context, id string, fireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification not found", nil)
	}
	n.FireAt = fireAt
	m.items[id] = n
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func sortByFireTime(ns []types.ScheduledNotification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].FireAt.Equal(ns[j].FireAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].FireAt.Before(ns[j].FireAt)
	})
}
