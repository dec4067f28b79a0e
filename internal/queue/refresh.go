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
	"github.com/google/uuid"

	"superiorweather/internal/types"
)

// RefreshMessage asks the refresh worker to run one fetch cycle.
type RefreshMessage struct {
	Location    types.Location      `json:"location"`
	Reason      types.RefreshReason `json:"reason"`
	TraceID     string              `json:"trace_id"`
	RequestedAt time.Time           `json:"requested_at"`
}

// RefreshTrigger enqueues RefreshMessages for the Lambda refresh worker.
type RefreshTrigger struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewRefreshTrigger creates a RefreshTrigger sending to queueURL.
func NewRefreshTrigger(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *RefreshTrigger {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshTrigger{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// TriggerRefresh enqueues a refresh of loc. The request ID on ctx becomes
// the trace ID; a fresh one is generated when absent.
func (t *RefreshTrigger) TriggerRefresh(ctx context.Context, loc types.Location, reason types.RefreshReason) error {
	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	body, err := json.Marshal(RefreshMessage{
		Location:    loc,
		Reason:      reason,
		TraceID:     traceID,
		RequestedAt: t.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to marshal RefreshMessage: %w", err)
	}

	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(reason)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: failed to send RefreshMessage to %s: %w", t.queueURL, err)
	}

	t.logger.InfoContext(ctx, "refresh message sent",
		"queue_url", t.queueURL,
		"trace_id", traceID,
		"reason", string(reason),
	)
	return nil
}

// ParseRefreshMessage decodes a queue message body.
func ParseRefreshMessage(body string) (RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return RefreshMessage{}, types.NewAppError(types.ErrCodeValidationInvalidJSON, "refresh message is not valid JSON", err)
	}
	if msg.Reason == "" {
		msg.Reason = types.RefreshBackgroundTimer
	}
	return msg, nil
}
