// Package main is the entrypoint for the refresh worker Lambda function.
//
// The worker runs one fetch cycle per invocation and writes the resulting
// schedule to the shared store; the daemon's dispatcher delivers it. It
// accepts three payload shapes:
//
//   - an SQS event whose records carry queue.RefreshMessage bodies
//   - an EventBridge scheduled event (refreshes the default location)
//   - a direct invocation {"latitude":..,"longitude":..,"reason":".."}
//
// Cold Start (main):
//  1. Load and validate configuration.
//  2. Open the schedule store (postgres or redis in deployed environments).
//  3. Build the weather client, notification scheduler and refresher.
//  4. Register handler and call lambda.Start.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"superiorweather/internal/config"
	"superiorweather/internal/db"
	"superiorweather/internal/external"
	notifcore "superiorweather/internal/notifications/core"
	"superiorweather/internal/notifications/delivery"
	"superiorweather/internal/queue"
	"superiorweather/internal/scheduler"
	"superiorweather/internal/types"
)

// RefreshRunner runs one fetch cycle. *scheduler.Refresher satisfies it.
type RefreshRunner interface {
	Refresh(ctx context.Context, in scheduler.RefreshInput) (scheduler.RefreshResult, error)
}

// DirectInput is the payload of a direct invocation. Missing coordinates
// refresh the configured default location.
type DirectInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Label     string   `json:"label"`
	Reason    string   `json:"reason"`
}

// Result summarises a direct or scheduled invocation.
type Result struct {
	Conditions string   `json:"conditions"`
	Alerts     []string `json:"alerts"`
	Scheduled  int      `json:"scheduled"`
	Fired      int      `json:"fired"`
	Failures   int      `json:"failures"`
}

// Handler holds the dependencies for the refresh worker.
type Handler struct {
	refresher RefreshRunner
	fallback  types.Location
	logger    *slog.Logger
}

// Handle dispatches on the payload shape.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	if isSQSEvent(payload) {
		var ev events.SQSEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decoding SQS event: %w", err)
		}
		return h.handleSQS(ctx, ev), nil
	}

	var in DirectInput
	if len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON, "invocation payload is not valid JSON", err)
		}
	}
	return h.handleDirect(ctx, in)
}

func (h *Handler) handleSQS(ctx context.Context, ev events.SQSEvent) events.SQSEventResponse {
	resp := events.SQSEventResponse{}
	for _, record := range ev.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process refresh message",
				"message_id", record.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}
	return resp
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	msg, err := queue.ParseRefreshMessage(record.Body)
	if err != nil {
		return err
	}
	traceID := msg.TraceID
	if traceID == "" {
		traceID = record.MessageId
	}
	_, err = h.refresher.Refresh(types.WithRequestID(ctx, traceID), scheduler.RefreshInput{
		Location: msg.Location,
		Reason:   msg.Reason,
	})
	return err
}

func (h *Handler) handleDirect(ctx context.Context, in DirectInput) (Result, error) {
	loc := h.fallback
	if in.Latitude != nil || in.Longitude != nil {
		if in.Latitude == nil || in.Longitude == nil {
			return Result{}, types.NewAppError(types.ErrCodeValidationMissingField, "latitude and longitude must be provided together", nil)
		}
		if *in.Latitude < -90 || *in.Latitude > 90 {
			return Result{}, types.NewAppError(types.ErrCodeValidationInvalidLat, "latitude must be between -90 and 90", nil)
		}
		if *in.Longitude < -180 || *in.Longitude > 180 {
			return Result{}, types.NewAppError(types.ErrCodeValidationInvalidLon, "longitude must be between -180 and 180", nil)
		}
		loc = types.Location{Latitude: *in.Latitude, Longitude: *in.Longitude, Label: in.Label}
	}

	reason := types.RefreshReason(in.Reason)
	if reason == "" {
		reason = types.RefreshBackgroundTimer
	}

	res, err := h.refresher.Refresh(ctx, scheduler.RefreshInput{Location: loc, Reason: reason})
	if err != nil {
		return Result{}, err
	}
	alerts := res.Report.Alerts
	if alerts == nil {
		alerts = []string{}
	}
	return Result{
		Conditions: res.Snapshot.Conditions,
		Alerts:     alerts,
		Scheduled:  res.Report.Scheduled,
		Fired:      res.Report.Fired,
		Failures:   res.Report.Failures,
	}, nil
}

// isSQSEvent reports whether payload looks like an SQS batch.
func isSQSEvent(payload json.RawMessage) bool {
	var probe struct {
		Records []struct {
			EventSource string `json:"eventSource"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || len(probe.Records) == 0 {
		return false
	}
	return strings.EqualFold(probe.Records[0].EventSource, "aws:sqs")
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("refresh worker initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	typed := types.NewSlogAdapter(logger)
	ctx := context.Background()

	if cfg.Store.Backend == config.StoreMemory {
		logger.Warn("refresh worker is using the in-memory store; schedules will not reach the dispatcher")
	}
	store, closeStore, err := db.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open schedule store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	policy, err := notifcore.PolicyFromConfig(cfg.Notification)
	if err != nil {
		logger.Error("invalid notification policy", "error", err)
		os.Exit(1)
	}

	var metrics notifcore.MultiMetrics
	if cfg.Observability.EnableCloudWatch {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		metrics = append(metrics, notifcore.NewCloudWatchNotificationMetrics(cw, cfg.Observability.MetricNamespace, typed))
	}

	weather := external.NewWeatherClient(
		external.NewBaseClient(&http.Client{Timeout: cfg.Weather.Timeout}, "weather", external.DefaultBreakerSettings(), cfg.Build.UserAgent()),
		external.WeatherClientConfig{
			BaseURL:   cfg.Weather.BaseURL,
			APIKey:    cfg.Weather.APIKey,
			UnitGroup: cfg.Weather.UnitGroup,
		},
	)
	service := delivery.NewService(store, types.RealClock{}, typed)
	sched := notifcore.NewScheduler(service, policy, typed, notifcore.WithMetrics(metrics))

	handler := &Handler{
		refresher: scheduler.NewRefresher(scheduler.RefresherConfig{
			Weather:   weather,
			Scheduler: sched,
			Metrics:   metrics,
			Logger:    typed,
		}),
		fallback: cfg.Weather.DefaultLocation(),
		logger:   logger,
	}

	logger.Info("refresh worker initialized",
		"store", cfg.Store.Backend,
		"default_location", cfg.Weather.DefaultLabel,
		"timezone", cfg.Notification.Timezone,
	)

	// Local mode: read one payload from stdin instead of starting the Lambda runtime.
	// Usage: echo '{"reason":"manual"}' | go run ./cmd/refresh-worker
	if cfg.Environment == "local" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		out, err := handler.Handle(ctx, payload)
		if err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		body, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(body))
		return
	}

	lambda.Start(handler.Handle)
}
