// Package queue provides SQS-based message producers: the push publisher that
// hands due notifications to the mobile push fan-out, and the refresh trigger
// that asks the refresh worker to run a fetch cycle.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"superiorweather/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PushMessage is the body of one push queue message.
type PushMessage struct {
	NotificationID string                 `json:"notification_id"`
	Kind           types.NotificationKind `json:"kind"`
	Channel        string                 `json:"channel"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	PlaySound      bool                   `json:"play_sound"`
	Vibrate        bool                   `json:"vibrate"`
	FireAt         time.Time              `json:"fire_at"`
	TraceID        string                 `json:"trace_id,omitempty"`
}

// PushPublisher publishes due notifications to SQS. It satisfies
// delivery.Sink.
//
// Queue routing:
//   - weather_alert -> Urgent queue (falls back to Standard when unset)
//   - everything else -> Standard queue
type PushPublisher struct {
	client           SQSSender
	standardQueueURL string
	urgentQueueURL   string
	logger           *slog.Logger
}

// NewPushPublisher creates a PushPublisher.
func NewPushPublisher(client SQSSender, standardQueueURL, urgentQueueURL string, logger *slog.Logger) *PushPublisher {
	if urgentQueueURL == "" {
		urgentQueueURL = standardQueueURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PushPublisher{
		client:           client,
		standardQueueURL: standardQueueURL,
		urgentQueueURL:   urgentQueueURL,
		logger:           logger,
	}
}

// Name identifies the sink in metrics and logs.
func (p *PushPublisher) Name() string { return "push" }

// Deliver enqueues n for push delivery.
func (p *PushPublisher) Deliver(ctx context.Context, n types.ScheduledNotification) error {
	msg := PushMessage{
		NotificationID: n.ID,
		Kind:           n.Kind,
		Channel:        n.Channel,
		Title:          n.Title,
		Body:           n.Body,
		PlaySound:      n.PlaySound,
		Vibrate:        n.Vibrate,
		FireAt:         n.FireAt.UTC(),
		TraceID:        types.GetRequestID(ctx),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal PushMessage: %w", err)
	}

	queueURL := p.standardQueueURL
	if n.Kind == types.KindWeatherAlert {
		queueURL = p.urgentQueueURL
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Kind)),
			},
		},
	})
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPushQueue,
			fmt.Sprintf("failed to send push message to %s", queueURL),
			err,
		)
	}

	p.logger.InfoContext(ctx, "push message sent",
		"queue_url", queueURL,
		"notification_id", n.ID,
		"kind", string(n.Kind),
	)
	return nil
}
