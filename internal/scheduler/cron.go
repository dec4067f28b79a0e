package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"superiorweather/internal/notifications/delivery"
	"superiorweather/internal/types"
)

// Ticker drains due notifications. *delivery.Dispatcher satisfies it.
type Ticker interface {
	Tick(ctx context.Context) (delivery.TickResult, error)
}

// RefreshRunner runs one fetch cycle. *Refresher satisfies it.
type RefreshRunner interface {
	Refresh(ctx context.Context, in RefreshInput) (RefreshResult, error)
}

// RunnerConfig wires the daemon's timers. An empty spec disables its job.
type RunnerConfig struct {
	Refresher    RefreshRunner
	Dispatcher   Ticker
	Location     types.Location
	RefreshSpec  string
	DispatchSpec string
	JobTimeout   time.Duration
	TimeZone     *time.Location
	Logger       *slog.Logger
}

// Runner owns the cron entries that drive timer refreshes and the dispatcher.
// Overlapping runs of the same job are skipped.
type Runner struct {
	cron    *cron.Cron
	cfg     RunnerConfig
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
}

// NewRunner validates the cron specs and registers the jobs.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.RefreshSpec != "" && cfg.Refresher == nil {
		return nil, errors.New("scheduler: refresh schedule set without a refresher")
	}
	if cfg.DispatchSpec != "" && cfg.Dispatcher == nil {
		return nil, errors.New("scheduler: dispatch schedule set without a dispatcher")
	}

	cl := cronLogger{l: cfg.Logger}
	c := cron.New(
		cron.WithLocation(cfg.TimeZone),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{cron: c, cfg: cfg, logger: cfg.Logger, ctx: ctx, cancel: cancel}

	if cfg.RefreshSpec != "" {
		if _, err := c.AddFunc(cfg.RefreshSpec, r.runRefresh); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: invalid refresh schedule %q: %w", cfg.RefreshSpec, err)
		}
	}
	if cfg.DispatchSpec != "" {
		if _, err := c.AddFunc(cfg.DispatchSpec, r.runDispatch); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: invalid dispatch schedule %q: %w", cfg.DispatchSpec, err)
		}
	}
	return r, nil
}

// Start begins executing the jobs in the background.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
	r.logger.Info("scheduler started", "entries", len(r.cron.Entries()))
}

// Stop cancels in-flight jobs and waits for them until ctx is done.
func (r *Runner) Stop(ctx context.Context) error {
	r.cancel()
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) runRefresh() {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JobTimeout)
	defer cancel()
	ctx = types.WithRequestID(ctx, "cron-refresh-"+time.Now().UTC().Format("20060102T150405"))

	// Errors are already logged by the refresher.
	_, _ = r.cfg.Refresher.Refresh(ctx, RefreshInput{
		Location: r.cfg.Location,
		Reason:   types.RefreshHourlyCheck,
	})
}

func (r *Runner) runDispatch() {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JobTimeout)
	defer cancel()

	res, err := r.cfg.Dispatcher.Tick(ctx)
	if err != nil {
		r.logger.Error("dispatch tick failed", "error", err)
		return
	}
	if res.Due > 0 {
		r.logger.Debug("dispatch tick",
			"due", res.Due,
			"delivered", res.Delivered,
			"failed", res.Failed,
			"advanced", res.Advanced,
			"removed", res.Removed,
		)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
