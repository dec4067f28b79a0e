package core

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"superiorweather/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchNotificationMetrics implements NotificationMetrics.
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// CloudWatchNotificationMetrics emits notification metrics to CloudWatch.
//
// Metrics emitted:
//   - NotificationScheduled: Dims {Kind, Result}, one per ScheduleAt/FireNow call
//   - DeliveryAttempt: Dims {Channel, Result}, one per sink delivery
//   - AlertsGenerated: no dims, value is the number of alerts in a cycle
//
// Publishing failures are logged and swallowed.
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchNotificationMetrics creates a publisher for namespace. An empty
// namespace falls back to types.DefaultMetricNamespace.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.DefaultMetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordScheduled emits NotificationScheduled with Kind and Result dimensions.
func (m *CloudWatchNotificationMetrics) RecordScheduled(ctx context.Context, kind types.NotificationKind, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationScheduled),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimKind), Value: aws.String(string(kind))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordDelivery emits DeliveryAttempt with Channel and Result dimensions.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, channel string, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(channel)},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordAlerts emits AlertsGenerated with the alert count of one cycle.
func (m *CloudWatchNotificationMetrics) RecordAlerts(ctx context.Context, count int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAlertsGenerated),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record notification metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

// RecordRefresh emits RefreshCycle with Reason and Result dimensions.
func (m *CloudWatchNotificationMetrics) RecordRefresh(ctx context.Context, reason types.RefreshReason, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRefreshCycle),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimReason), Value: aws.String(string(reason))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// MultiMetrics fans every call out to each wrapped recorder.
type MultiMetrics []NotificationMetrics

func (mm MultiMetrics) RecordScheduled(ctx context.Context, kind types.NotificationKind, result MetricResult) {
	for _, m := range mm {
		m.RecordScheduled(ctx, kind, result)
	}
}

func (mm MultiMetrics) RecordDelivery(ctx context.Context, channel string, result MetricResult) {
	for _, m := range mm {
		m.RecordDelivery(ctx, channel, result)
	}
}

func (mm MultiMetrics) RecordAlerts(ctx context.Context, count int) {
	for _, m := range mm {
		m.RecordAlerts(ctx, count)
	}
}

// RecordRefresh forwards to every recorder that tracks refresh cycles.
func (mm MultiMetrics) RecordRefresh(ctx context.Context, reason types.RefreshReason, result MetricResult) {
	for _, m := range mm {
		if r, ok := m.(interface {
			RecordRefresh(context.Context, types.RefreshReason, MetricResult)
		}); ok {
			r.RecordRefresh(ctx, reason, result)
		}
	}
}
