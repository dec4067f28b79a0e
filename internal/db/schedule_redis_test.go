package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superiorweather/internal/types"
)

// fakeRedis is an in-memory subset of Redis covering the commands the store
// issues. Replies use redigo's wire types: int64, []byte, []interface{}.
type fakeRedis struct {
	hashes  map[string]map[string][]byte
	zsets   map[string]map[string]float64
	failing bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes: map[string]map[string][]byte{},
		zsets:  map[string]map[string]float64{},
	}
}

func (f *fakeRedis) GetContext(context.Context) (redis.Conn, error) {
	if f.failing {
		return nil, errors.New("dial tcp: connection refused")
	}
	return &fakeConn{db: f}, nil
}

type fakeConn struct {
	db      *fakeRedis
	pending [][]any
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }
func (c *fakeConn) Flush() error { return nil }

func (c *fakeConn) Receive() (any, error) { return nil, errors.New("not supported") }

func (c *fakeConn) Send(cmd string, args ...any) error {
	c.pending = append(c.pending, append([]any{cmd}, args...))
	return nil
}

func (c *fakeConn) Do(cmd string, args ...any) (any, error) {
	if cmd == "EXEC" {
		var replies []any
		for _, p := range c.pending {
			if p[0] == "MULTI" {
				continue
			}
			r, err := c.exec(p[0].(string), p[1:])
			if err != nil {
				return nil, err
			}
			replies = append(replies, r)
		}
		c.pending = nil
		return replies, nil
	}
	return c.exec(cmd, args)
}

func str(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func score(v any) float64 {
	s := str(v)
	switch s {
	case "-inf":
		return math.Inf(-1)
	case "+inf":
		return math.Inf(1)
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func (c *fakeConn) hash(key string) map[string][]byte {
	h, ok := c.db.hashes[key]
	if !ok {
		h = map[string][]byte{}
		c.db.hashes[key] = h
	}
	return h
}

func (c *fakeConn) zset(key string) map[string]float64 {
	z, ok := c.db.zsets[key]
	if !ok {
		z = map[string]float64{}
		c.db.zsets[key] = z
	}
	return z
}

// sortedMembers orders by score, then member.
func sortedMembers(z map[string]float64, min, max float64) []string {
	var out []string
	for m, s := range z {
		if s >= min && s <= max {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if z[out[i]] == z[out[j]] {
			return out[i] < out[j]
		}
		return z[out[i]] < z[out[j]]
	})
	return out
}

func bulk(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func (c *fakeConn) exec(cmd string, args []any) (any, error) {
	switch cmd {
	case "PING":
		return "PONG", nil
	case "WATCH":
		return "OK", nil
	case "HSETNX":
		h := c.hash(str(args[0]))
		if _, ok := h[str(args[1])]; ok {
			return int64(0), nil
		}
		h[str(args[1])] = []byte(str(args[2]))
		return int64(1), nil
	case "HSET":
		c.hash(str(args[0]))[str(args[1])] = []byte(str(args[2]))
		return int64(1), nil
	case "HGET":
		v, ok := c.hash(str(args[0]))[str(args[1])]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "HMGET":
		h := c.hash(str(args[0]))
		out := make([]any, 0, len(args)-1)
		for _, f := range args[1:] {
			if v, ok := h[str(f)]; ok {
				out = append(out, v)
			} else {
				out = append(out, nil)
			}
		}
		return out, nil
	case "HLEN":
		return int64(len(c.hash(str(args[0])))), nil
	case "HDEL":
		delete(c.hash(str(args[0])), str(args[1]))
		return int64(1), nil
	case "DEL":
		for _, k := range args {
			delete(c.db.hashes, str(k))
			delete(c.db.zsets, str(k))
		}
		return int64(len(args)), nil
	case "ZADD":
		c.zset(str(args[0]))[str(args[2])] = score(args[1])
		return int64(1), nil
	case "ZREM":
		delete(c.zset(str(args[0])), str(args[1]))
		return int64(1), nil
	case "ZRANGE":
		return bulk(sortedMembers(c.zset(str(args[0])), math.Inf(-1), math.Inf(1))), nil
	case "ZRANGEBYSCORE":
		members := sortedMembers(c.zset(str(args[0])), score(args[1]), score(args[2]))
		if len(args) == 6 && str(args[3]) == "LIMIT" {
			limit, _ := strconv.Atoi(str(args[5]))
			if len(members) > limit {
				members = members[:limit]
			}
		}
		return bulk(members), nil
	}
	return nil, fmt.Errorf("fake redis: unsupported command %s", cmd)
}

var redisT0 = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func TestRedisScheduleStore_InsertAndList(t *testing.T) {
	ctx := context.Background()
	store := NewRedisScheduleStore(newFakeRedis(), "")

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{
			ID:     id,
			Title:  "Weather Update",
			FireAt: redisT0.Add(-time.Duration(i) * time.Minute),
			Repeat: types.RepeatDaily,
			Kind:   types.KindDetailUpdate,
		}))
	}
	require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{ID: "future", FireAt: redisT0.Add(time.Hour)}))

	due, err := store.ListDue(ctx, redisT0, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].ID)
	assert.Equal(t, "a", due[1].ID)
	assert.Equal(t, types.RepeatDaily, due[0].Repeat)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	assert.Equal(t, "future", pending[3].ID)
}

func TestRedisScheduleStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewRedisScheduleStore(newFakeRedis(), "test")

	require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{ID: "ntf_1"}))
	err := store.Insert(ctx, &types.ScheduledNotification{ID: "ntf_1"})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestRedisScheduleStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	store := NewRedisScheduleStore(fake, "")

	n, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{ID: "a", FireAt: redisT0}))
	require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{ID: "b", FireAt: redisT0}))

	n, err = store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRedisScheduleStore_RescheduleAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRedisScheduleStore(newFakeRedis(), "")

	require.NoError(t, store.Insert(ctx, &types.ScheduledNotification{ID: "a", FireAt: redisT0, Repeat: types.RepeatDaily}))
	require.NoError(t, store.Reschedule(ctx, "a", redisT0.Add(24*time.Hour)))

	due, err := store.ListDue(ctx, redisT0, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].FireAt.Equal(redisT0.Add(24*time.Hour)))

	err = store.Reschedule(ctx, "missing", redisT0)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundNotification, appErr.Code)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRedisScheduleStore_ConnectionFailure(t *testing.T) {
	fake := newFakeRedis()
	fake.failing = true
	store := NewRedisScheduleStore(fake, "")

	err := store.Ping(context.Background())
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)

	fake.failing = false
	assert.NoError(t, store.Ping(context.Background()))
}
