// Package config defines the configuration of the Superior Weather service.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"
	// zoneinfo for NOTIFICATION_TIMEZONE in minimal containers
	_ "time/tzdata"

	"superiorweather/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Sink names accepted in NOTIFICATION_SINKS.
const (
	SinkLog     = "log"
	SinkWebhook = "webhook"
	SinkPush    = "push"
	SinkStream  = "stream"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subset they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"superior-weather"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Store         StoreConfig
	Weather       WeatherConfig
	Notification  NotificationConfig
	Webhook       WebhookConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// StreamOrigins restricts websocket subscribers; empty allows same-origin only, "*" any.
	StreamOrigins []string `envconfig:"STREAM_ALLOWED_ORIGINS"`
}

// StoreConfig selects and tunes the pending-notification store.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"memory" validate:"oneof=memory postgres redis"`

	DatabaseURL       SecretString  `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres"`
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	RedisAddr      string       `envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword  SecretString `envconfig:"REDIS_PASSWORD"`
	RedisDB        int          `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string       `envconfig:"REDIS_KEY_PREFIX" default:"superiorweather"`
	RedisMaxIdle   int          `envconfig:"REDIS_MAX_IDLE" default:"4"`
	RedisMaxActive int          `envconfig:"REDIS_MAX_ACTIVE" default:"16"`
}

// WeatherConfig holds the weather provider credentials and the default
// location used by timer-driven refreshes.
type WeatherConfig struct {
	APIKey    SecretString  `envconfig:"WEATHER_API_KEY" validate:"required"`
	BaseURL   string        `envconfig:"WEATHER_BASE_URL" default:"https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline" validate:"url"`
	UnitGroup string        `envconfig:"WEATHER_UNIT_GROUP" default:"us" validate:"oneof=us metric uk base"`
	Timeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`

	DefaultLatitude  float64 `envconfig:"DEFAULT_LATITUDE" default:"46.7867" validate:"latitude"`
	DefaultLongitude float64 `envconfig:"DEFAULT_LONGITUDE" default:"-92.1005" validate:"longitude"`
	DefaultLabel     string  `envconfig:"DEFAULT_LOCATION_LABEL" default:"Duluth, MN"`

	// RefreshSchedule is a cron spec; empty disables timer-driven refreshes.
	RefreshSchedule string `envconfig:"REFRESH_SCHEDULE" default:"@hourly"`
}

// NotificationConfig holds the fixed schedule policy and dispatcher settings.
type NotificationConfig struct {
	Channel       string        `envconfig:"NOTIFICATION_CHANNEL" default:"weather-alerts" validate:"required"`
	Timezone      string        `envconfig:"NOTIFICATION_TIMEZONE" default:"UTC" validate:"timezone"`
	MorningTime   string        `envconfig:"MORNING_SUMMARY_TIME" default:"06:00" validate:"datetime=15:04"`
	MorningRepeat string        `envconfig:"MORNING_SUMMARY_REPEAT" default:"daily" validate:"oneof=none daily"`
	DetailTimes   []string      `envconfig:"DETAIL_UPDATE_TIMES" default:"12:00,16:00,00:00" validate:"min=1,dive,datetime=15:04"`
	AlertStagger  time.Duration `envconfig:"ALERT_STAGGER" default:"1s"`

	Sinks            []string `envconfig:"NOTIFICATION_SINKS" default:"log" validate:"min=1,dive,oneof=log webhook push stream"`
	DispatchSchedule string   `envconfig:"DISPATCH_SCHEDULE" default:"@every 1s"`
	BatchSize        int      `envconfig:"DISPATCH_BATCH_SIZE" default:"100" validate:"min=1"`
}

// WebhookConfig holds settings for outbound webhook delivery.
type WebhookConfig struct {
	URL              string       `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	PlatformOverride string       `envconfig:"WEBHOOK_PLATFORM" validate:"omitempty,oneof=generic slack discord teams google_chat"`
	Secret           SecretString `envconfig:"WEBHOOK_SECRET"`
	PreviousSecret   SecretString `envconfig:"WEBHOOK_PREVIOUS_SECRET"`
	// PreviousSecretExpiresAt is RFC3339; empty never co-signs with PreviousSecret.
	PreviousSecretExpiresAt string        `envconfig:"WEBHOOK_PREVIOUS_SECRET_EXPIRES_AT" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	UserAgent               string        `envconfig:"WEBHOOK_USER_AGENT" default:"SuperiorWeather-Webhook/1.0"`
	DefaultTimeout          time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRedirects            int           `envconfig:"WEBHOOK_MAX_REDIRECTS" default:"3" validate:"gte=0,lte=10"`
	// AllowPrivate disables the outbound address guard. Local development only.
	AllowPrivate bool `envconfig:"WEBHOOK_ALLOW_PRIVATE" default:"false"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	PushQueueStandard string `envconfig:"SQS_PUSH_STANDARD" validate:"omitempty,url"`
	PushQueueUrgent   string `envconfig:"SQS_PUSH_URGENT" validate:"omitempty,url"`
	RefreshQueue      string `envconfig:"SQS_REFRESH" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"SuperiorWeather"`
	EnableCloudWatch bool   `envconfig:"ENABLE_CLOUDWATCH_METRICS" default:"false"`
	EnablePrometheus bool   `envconfig:"ENABLE_PROMETHEUS_METRICS" default:"true"`
	PrometheusPath   string `envconfig:"PROMETHEUS_PATH" default:"/metrics"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// DefaultLocation returns the configured fallback location.
func (w WeatherConfig) DefaultLocation() types.Location {
	return types.Location{
		Latitude:  w.DefaultLatitude,
		Longitude: w.DefaultLongitude,
		Label:     w.DefaultLabel,
	}
}

// PreviousSecretExpiry parses PreviousSecretExpiresAt. An empty or invalid
// value yields the zero time.
func (w WebhookConfig) PreviousSecretExpiry() time.Time {
	if w.PreviousSecretExpiresAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, w.PreviousSecretExpiresAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasSink reports whether name is among the enabled sinks.
func (n NotificationConfig) HasSink(name string) bool {
	for _, s := range n.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found,
	// including settings required only by an enabled sink.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
