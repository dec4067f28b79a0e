package types

// CloudWatch metric names and dimensions. All components use these constants.
const (
	MetricNotificationScheduled = "NotificationScheduled"
	MetricDeliveryAttempt       = "DeliveryAttempt"
	MetricAlertsGenerated       = "AlertsGenerated"
	MetricRefreshCycle          = "RefreshCycle"

	DimKind    = "Kind"
	DimChannel = "Channel"
	DimResult  = "Result"
	DimReason  = "Reason"

	DefaultMetricNamespace = "SuperiorWeather"
)
