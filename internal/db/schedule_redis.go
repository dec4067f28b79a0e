package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"superiorweather/internal/types"
)

// RedisConfig configures a redigo connection pool.
type RedisConfig struct {
	Addr      string
	Password  types.SecretString
	DB        int
	KeyPrefix string
	MaxIdle   int
	MaxActive int
}

// NewRedisPool builds a pool that dials lazily and pings idle connections
// on borrow.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.MaxIdle == 0 {
		cfg.MaxIdle = 8
	}
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		MaxActive:   cfg.MaxActive,
		Wait:        cfg.MaxActive > 0,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialDatabase(cfg.DB),
				redis.DialConnectTimeout(5 * time.Second),
			}
			if cfg.Password.IsSet() {
				opts = append(opts, redis.DialPassword(cfg.Password.Unmask()))
			}
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// ConnSource hands out redis connections. *redis.Pool satisfies it.
type ConnSource interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// RedisScheduleStore keeps pending notifications in two keys:
//
//	{prefix}:notifications  HASH  id -> JSON notification
//	{prefix}:schedule       ZSET  id scored by fire time (unix ms)
//
// Equal scores order by id, matching the other stores.
type RedisScheduleStore struct {
	src       ConnSource
	hashKey   string
	scheduleK string
}

// NewRedisScheduleStore creates a store under prefix (default "superiorweather").
func NewRedisScheduleStore(src ConnSource, prefix string) *RedisScheduleStore {
	if prefix == "" {
		prefix = "superiorweather"
	}
	return &RedisScheduleStore{
		src:       src,
		hashKey:   prefix + ":notifications",
		scheduleK: prefix + ":schedule",
	}
}

func (s *RedisScheduleStore) conn(ctx context.Context) (redis.Conn, error) {
	c, err := s.src.GetContext(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "redis connection unavailable", err)
	}
	return c, nil
}

// Ping verifies connectivity.
func (s *RedisScheduleStore) Ping(ctx context.Context) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if _, err := c.Do("PING"); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "redis ping failed", err)
	}
	return nil
}

// DeleteAll removes every pending notification and returns how many there were.
func (s *RedisScheduleStore) DeleteAll(ctx context.Context) (int, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	c.Send("MULTI")
	c.Send("HLEN", s.hashKey)
	c.Send("DEL", s.hashKey, s.scheduleK)
	replies, err := redis.Values(c.Do("EXEC"))
	if err != nil || len(replies) == 0 {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to clear scheduled notifications", err)
	}
	n, err := redis.Int(replies[0], nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to clear scheduled notifications", err)
	}
	return n, nil
}

// Insert stores n. Ids must be unique.
func (s *RedisScheduleStore) Insert(ctx context.Context, n *types.ScheduledNotification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode scheduled notification", err)
	}

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	created, err := redis.Int(c.Do("HSETNX", s.hashKey, n.ID, raw))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert scheduled notification", err)
	}
	if created == 0 {
		return types.NewAppError(types.ErrCodeInternalDB, "scheduled notification id already exists", nil).
			WithDetails(map[string]any{"id": n.ID})
	}
	if _, err := c.Do("ZADD", s.scheduleK, n.FireAt.UnixMilli(), n.ID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to index scheduled notification", err)
	}
	return nil
}

// ListDue returns up to limit entries with FireAt <= now, earliest first.
func (s *RedisScheduleStore) ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ids, err := redis.Strings(c.Do("ZRANGEBYSCORE", s.scheduleK, "-inf", now.UnixMilli(), "LIMIT", 0, limit))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due notifications", err)
	}
	return s.load(c, ids)
}

// ListPending returns every entry, earliest first.
func (s *RedisScheduleStore) ListPending(ctx context.Context) ([]types.ScheduledNotification, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ids, err := redis.Strings(c.Do("ZRANGE", s.scheduleK, 0, -1))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list scheduled notifications", err)
	}
	return s.load(c, ids)
}

// load fetches the JSON bodies for ids in order. Ids whose body vanished
// between the two reads are skipped.
func (s *RedisScheduleStore) load(c redis.Conn, ids []string) ([]types.ScheduledNotification, error) {
	out := make([]types.ScheduledNotification, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := redis.Args{}.Add(s.hashKey).AddFlat(ids)
	raws, err := redis.ByteSlices(c.Do("HMGET", args...))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load scheduled notifications", err)
	}
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		var n types.ScheduledNotification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode scheduled notification", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Reschedule moves an entry to fireAt.
func (s *RedisScheduleStore) Reschedule(ctx context.Context, id string, fireAt time.Time) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	// A concurrent DeleteAll or Delete aborts the transaction below.
	if _, err := c.Do("WATCH", s.hashKey); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule notification", err)
	}
	raw, err := redis.Bytes(c.Do("HGET", s.hashKey, id))
	if errors.Is(err, redis.ErrNil) {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification not found", nil)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule notification", err)
	}

	var n types.ScheduledNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to decode scheduled notification", err)
	}
	n.FireAt = fireAt
	updated, err := json.Marshal(n)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode scheduled notification", err)
	}

	c.Send("MULTI")
	c.Send("HSET", s.hashKey, id, updated)
	c.Send("ZADD", s.scheduleK, fireAt.UnixMilli(), id)
	_, err = redis.Values(c.Do("EXEC"))
	if errors.Is(err, redis.ErrNil) {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "scheduled notification changed concurrently", nil)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule notification", err)
	}
	return nil
}

// Delete removes an entry. Missing ids are ignored.
func (s *RedisScheduleStore) Delete(ctx context.Context, id string) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Send("MULTI")
	c.Send("HDEL", s.hashKey, id)
	c.Send("ZREM", s.scheduleK, id)
	if _, err := c.Do("EXEC"); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete scheduled notification", err)
	}
	return nil
}
