package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superiorweather/internal/notifications/delivery"
	"superiorweather/internal/types"
)

type countingTicker struct {
	ticks atomic.Int32
	err   error
}

func (c *countingTicker) Tick(context.Context) (delivery.TickResult, error) {
	c.ticks.Add(1)
	return delivery.TickResult{Due: 1, Delivered: 1}, c.err
}

type recordingRunner struct {
	inputs chan RefreshInput
}

func (r *recordingRunner) Refresh(ctx context.Context, in RefreshInput) (RefreshResult, error) {
	r.inputs <- in
	if types.GetRequestID(ctx) == "" {
		return RefreshResult{}, errors.New("missing request id")
	}
	return RefreshResult{Reason: in.Reason}, nil
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(RunnerConfig{RefreshSpec: "@hourly"})
	assert.Error(t, err)

	_, err = NewRunner(RunnerConfig{DispatchSpec: "@every 1s"})
	assert.Error(t, err)

	_, err = NewRunner(RunnerConfig{Dispatcher: &countingTicker{}, DispatchSpec: "not a spec"})
	assert.ErrorContains(t, err, "invalid dispatch schedule")

	r, err := NewRunner(RunnerConfig{})
	require.NoError(t, err)
	assert.Empty(t, r.cron.Entries())
}

func TestRunner_RefreshJobUsesConfiguredLocation(t *testing.T) {
	loc := types.Location{Latitude: 46.72, Longitude: -92.1, Label: "Superior"}
	rec := &recordingRunner{inputs: make(chan RefreshInput, 1)}

	r, err := NewRunner(RunnerConfig{Refresher: rec, RefreshSpec: "@hourly", Location: loc})
	require.NoError(t, err)
	require.Len(t, r.cron.Entries(), 1)

	r.runRefresh()

	got := <-rec.inputs
	assert.Equal(t, loc, got.Location)
	assert.Equal(t, types.RefreshHourlyCheck, got.Reason)
}

func TestRunner_DispatchRunsOnSchedule(t *testing.T) {
	ticker := &countingTicker{}
	r, err := NewRunner(RunnerConfig{Dispatcher: ticker, DispatchSpec: "@every 1s"})
	require.NoError(t, err)

	r.Start()
	r.Start()
	assert.Eventually(t, func() bool { return ticker.ticks.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}

func TestRunner_DispatchErrorIsContained(t *testing.T) {
	ticker := &countingTicker{err: errors.New("store down")}
	r, err := NewRunner(RunnerConfig{Dispatcher: ticker, DispatchSpec: "@every 1s"})
	require.NoError(t, err)

	assert.NotPanics(t, r.runDispatch)
	assert.Equal(t, int32(1), ticker.ticks.Load())
}
