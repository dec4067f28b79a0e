package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"superiorweather/internal/config"
	"superiorweather/internal/external"
	notifcore "superiorweather/internal/notifications/core"
	"superiorweather/internal/notifications/delivery"
	"superiorweather/internal/notifications/stream"
	"superiorweather/internal/notifications/webhook"
	"superiorweather/internal/queue"
	"superiorweather/internal/scheduler"
	"superiorweather/internal/security"
	"superiorweather/internal/types"
)

// awsClients holds the AWS SDK clients. Fields are nil when nothing enabled
// needs them.
type awsClients struct {
	sqs            *sqs.Client
	cloudwatch     *cloudwatch.Client
	refreshTrigger *queue.RefreshTrigger
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Observability.EnableCloudWatch ||
		cfg.Notification.HasSink(config.SinkPush) ||
		cfg.AWS.RefreshQueue != ""
}

// newAWSClients loads the SDK configuration only when an enabled feature
// talks to AWS. AWS_ENDPOINT_URL points every client at LocalStack.
func newAWSClients(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*awsClients, error) {
	clients := &awsClients{}
	if !needsAWS(cfg) {
		return clients, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}

	endpoint := cfg.AWS.EndpointURL
	clients.sqs = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	clients.cloudwatch = cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	if cfg.AWS.RefreshQueue != "" {
		clients.refreshTrigger = queue.NewRefreshTrigger(clients.sqs, cfg.AWS.RefreshQueue, types.RealClock{}, logger)
	}
	return clients, nil
}

// buildMetrics fans out to every enabled backend. The Prometheus recorder is
// also returned so its handler can be mounted.
func buildMetrics(obs config.ObservabilityConfig, clients *awsClients, logger types.Logger) (notifcore.MultiMetrics, *notifcore.PrometheusMetrics) {
	var (
		mm   notifcore.MultiMetrics
		prom *notifcore.PrometheusMetrics
	)
	if obs.EnablePrometheus {
		prom = notifcore.NewPrometheusMetrics(strings.ToLower(obs.MetricNamespace))
		mm = append(mm, prom)
	}
	if obs.EnableCloudWatch && clients != nil && clients.cloudwatch != nil {
		mm = append(mm, notifcore.NewCloudWatchNotificationMetrics(clients.cloudwatch, obs.MetricNamespace, logger))
	}
	return mm, prom
}

// buildSinks constructs the sinks named in NOTIFICATION_SINKS, in order.
func buildSinks(cfg *config.Config, clients *awsClients, hub *stream.Hub, logger *slog.Logger) ([]delivery.Sink, error) {
	sinks := make([]delivery.Sink, 0, len(cfg.Notification.Sinks))
	for _, name := range cfg.Notification.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, delivery.NewLogSink(logger))

		case config.SinkWebhook:
			httpClient, err := webhookHTTPClient(cfg.Webhook)
			if err != nil {
				return nil, err
			}
			base := external.NewBaseClient(
				httpClient,
				"webhook",
				external.DefaultBreakerSettings(),
				cfg.Webhook.UserAgent,
			)
			ch, err := webhook.NewChannel(webhook.Config{
				URL:                     cfg.Webhook.URL,
				PlatformOverride:        cfg.Webhook.PlatformOverride,
				Secret:                  cfg.Webhook.Secret,
				PreviousSecret:          cfg.Webhook.PreviousSecret,
				PreviousSecretExpiresAt: cfg.Webhook.PreviousSecretExpiry(),
			}, base, types.NewSlogAdapter(logger))
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, ch)

		case config.SinkPush:
			if clients == nil || clients.sqs == nil {
				return nil, fmt.Errorf("push sink requires AWS configuration")
			}
			sinks = append(sinks, queue.NewPushPublisher(clients.sqs, cfg.AWS.PushQueueStandard, cfg.AWS.PushQueueUrgent, logger))

		case config.SinkStream:
			sinks = append(sinks, hub)

		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, nil
}

// webhookHTTPClient refuses private destinations unless WEBHOOK_ALLOW_PRIVATE
// is set.
func webhookHTTPClient(wc config.WebhookConfig) (*http.Client, error) {
	if wc.AllowPrivate {
		return &http.Client{Timeout: wc.DefaultTimeout}, nil
	}
	return security.NewSafeHTTPClient(wc.DefaultTimeout, wc.MaxRedirects)
}

// pipelineDeps carries what buildPipeline needs from the process setup.
type pipelineDeps struct {
	store   delivery.Store
	policy  notifcore.Policy
	metrics notifcore.MultiMetrics
	aws     *awsClients
	clock   types.Clock
	logger  *slog.Logger
}

// pipeline is the refresh-to-delivery chain shared by the API and the runner.
type pipeline struct {
	weather    *external.WeatherClient
	service    *delivery.Service
	notifier   *notifcore.Scheduler
	refresher  *scheduler.Refresher
	dispatcher *delivery.Dispatcher
	hub        *stream.Hub
}

func buildPipeline(cfg *config.Config, deps pipelineDeps) (*pipeline, error) {
	if deps.clock == nil {
		deps.clock = types.RealClock{}
	}
	typed := types.NewSlogAdapter(deps.logger)

	hub := stream.NewHub(typed, cfg.Server.StreamOrigins...)
	sinks, err := buildSinks(cfg, deps.aws, hub, deps.logger)
	if err != nil {
		return nil, fmt.Errorf("building sinks: %w", err)
	}

	weatherBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"weather",
		external.DefaultBreakerSettings(),
		cfg.Build.UserAgent(),
	)
	weather := external.NewWeatherClient(weatherBase, external.WeatherClientConfig{
		BaseURL:   cfg.Weather.BaseURL,
		APIKey:    cfg.Weather.APIKey,
		UnitGroup: cfg.Weather.UnitGroup,
	})

	service := delivery.NewService(deps.store, deps.clock, typed)
	sched := notifcore.NewScheduler(service, deps.policy, typed,
		notifcore.WithClock(deps.clock),
		notifcore.WithMetrics(deps.metrics),
	)
	refresher := scheduler.NewRefresher(scheduler.RefresherConfig{
		Weather:   weather,
		Scheduler: sched,
		Metrics:   deps.metrics,
		Clock:     deps.clock,
		Logger:    typed,
	})
	dispatcher := delivery.NewDispatcher(delivery.DispatcherConfig{
		Store:     deps.store,
		Sinks:     sinks,
		Clock:     deps.clock,
		Metrics:   deps.metrics,
		Logger:    typed,
		BatchSize: cfg.Notification.BatchSize,
		Location:  deps.policy.Location,
	})

	return &pipeline{
		weather:    weather,
		service:    service,
		notifier:   sched,
		refresher:  refresher,
		dispatcher: dispatcher,
		hub:        hub,
	}, nil
}
