// Package main is the entry point for the Superior Weather daemon.
//
// The daemon owns the whole pipeline in one process: the HTTP API, the cron
// entries that refresh the configured default location and drain due
// notifications, and the delivery sinks. Graceful shutdown is handled via OS
// signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"superiorweather/internal/api/handlers"
	"superiorweather/internal/config"
	"superiorweather/internal/core"
	"superiorweather/internal/db"
	notifcore "superiorweather/internal/notifications/core"
	"superiorweather/internal/scheduler"
	"superiorweather/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	typed := types.NewSlogAdapter(logger)
	logger.Info("superior weather daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"sinks", cfg.Notification.Sinks,
	)

	ctx := context.Background()

	policy, err := notifcore.PolicyFromConfig(cfg.Notification)
	if err != nil {
		return fmt.Errorf("building schedule policy: %w", err)
	}

	store, closeStore, err := db.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer closeStore()

	clients, err := newAWSClients(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	metrics, prom := buildMetrics(cfg.Observability, clients, typed)

	p, err := buildPipeline(cfg, pipelineDeps{
		store:   store,
		policy:  policy,
		metrics: metrics,
		aws:     clients,
		logger:  logger,
	})
	if err != nil {
		return err
	}
	defer p.hub.Close()

	runner, err := scheduler.NewRunner(scheduler.RunnerConfig{
		Refresher:    p.refresher,
		Dispatcher:   p.dispatcher,
		Location:     cfg.Weather.DefaultLocation(),
		RefreshSpec:  cfg.Weather.RefreshSchedule,
		DispatchSpec: cfg.Notification.DispatchSchedule,
		JobTimeout:   cfg.Weather.Timeout + 5*time.Second,
		TimeZone:     policy.Location,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if prom != nil {
		srv.Metrics = prom
		srv.RootHandlers[cfg.Observability.PrometheusPath] = prom.Handler()
	}
	srv.HealthProbes = append(srv.HealthProbes,
		core.ProbeFunc{ProbeName: "store", Fn: p.service.Ping},
	)

	weatherHandler := handlers.NewWeatherHandler(
		p.refresher,
		p.weather,
		p.service,
		cfg.Weather.DefaultLocation(),
		srv.Validator,
		logger,
	)
	if clients.refreshTrigger != nil {
		weatherHandler.WithEnqueuer(clients.refreshTrigger)
	}
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, weatherHandler.RegisterRoutes)
	if cfg.Notification.HasSink(config.SinkStream) {
		srv.RootHandlers["/stream"] = p.hub
	}
	srv.MountRoutes()

	runner.Start()

	// A fresh process has no schedule for the default location yet.
	go func() {
		rctx, cancel := context.WithTimeout(types.WithRequestID(ctx, "startup"), cfg.Weather.Timeout+5*time.Second)
		defer cancel()
		_, _ = p.refresher.Refresh(rctx, scheduler.RefreshInput{
			Location: cfg.Weather.DefaultLocation(),
			Reason:   types.RefreshLocationChange,
		})
	}()

	return serve(srv, runner, cfg, logger)
}

// serve runs the HTTP server until a signal or server error, then stops the
// cron runner and drains in-flight requests.
func serve(srv *core.Server, runner *scheduler.Runner, cfg *config.Config, logger *slog.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(":" + cfg.Server.Port)
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := runner.Stop(ctx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server shutdown error", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown: %w", err)
		}
	}

	if runErr == nil {
		logger.Info("daemon stopped cleanly")
	}
	return runErr
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
