// Package types holds the domain model shared by every Superior Weather
// component: weather snapshots, scheduled notifications, application errors
// and the small infrastructure interfaces (Logger, Clock) injected everywhere.
package types

import (
	"encoding/json"
	"math"
	"time"
)

// Missing is the sentinel for a numeric observation the weather provider did
// not report. Every ordered comparison against it is false, so threshold
// rules silently skip missing fields.
var Missing = math.NaN()

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Location identifies where a snapshot was observed.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
	Label     string  `json:"label,omitempty"`
}

// HourlyForecast is one hour of the short-term forecast attached to a
// snapshot. LocalTime is the provider's wall-clock label (HH:MM:SS) at the
// observed location.
type HourlyForecast struct {
	Time              time.Time `json:"time"`
	LocalTime         string    `json:"local_time"`
	Temperature       float64   `json:"temperature"`
	Conditions        string    `json:"conditions"`
	PrecipProbability float64   `json:"precip_probability"`
}

// MarshalJSON renders Missing values as null.
func (h HourlyForecast) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time              time.Time `json:"time"`
		LocalTime         string    `json:"local_time"`
		Temperature       *float64  `json:"temperature"`
		Conditions        string    `json:"conditions"`
		PrecipProbability *float64  `json:"precip_probability"`
	}{h.Time, h.LocalTime, nullable(h.Temperature), h.Conditions, nullable(h.PrecipProbability)})
}

// ForecastHours is how many hourly entries a snapshot carries.
const ForecastHours = 24

// Snapshot is one fetched weather observation plus its short-term hourly
// forecast. It is immutable once built and fully replaces the previous one on
// every fetch cycle. Alert rules only read the observation.
//
// Temperatures are in degrees Fahrenheit, probabilities and humidity in
// percent (0-100), wind speed in km/h.
type Snapshot struct {
	Temperature       float64   `json:"temperature"`
	FeelsLike         float64   `json:"feels_like"`
	Conditions        string    `json:"conditions"`
	PrecipProbability float64   `json:"precip_probability"`
	WindSpeed         float64   `json:"wind_speed"`
	Humidity          float64   `json:"humidity"`
	Visibility        float64   `json:"visibility"`
	UVIndex           float64   `json:"uv_index"`
	ObservedAt        time.Time `json:"observed_at"`
	Location          Location  `json:"location"`

	Hourly []HourlyForecast `json:"hourly"`
}

// MarshalJSON renders Missing values as null; encoding/json rejects NaN.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	hourly := s.Hourly
	if hourly == nil {
		hourly = []HourlyForecast{}
	}
	type wire struct {
		Temperature       *float64         `json:"temperature"`
		FeelsLike         *float64         `json:"feels_like"`
		Conditions        string           `json:"conditions"`
		PrecipProbability *float64         `json:"precip_probability"`
		WindSpeed         *float64         `json:"wind_speed"`
		Humidity          *float64         `json:"humidity"`
		Visibility        *float64         `json:"visibility"`
		UVIndex           *float64         `json:"uv_index"`
		ObservedAt        time.Time        `json:"observed_at"`
		Location          Location         `json:"location"`
		Hourly            []HourlyForecast `json:"hourly"`
	}
	return json.Marshal(wire{
		Temperature:       nullable(s.Temperature),
		FeelsLike:         nullable(s.FeelsLike),
		Conditions:        s.Conditions,
		PrecipProbability: nullable(s.PrecipProbability),
		WindSpeed:         nullable(s.WindSpeed),
		Humidity:          nullable(s.Humidity),
		Visibility:        nullable(s.Visibility),
		UVIndex:           nullable(s.UVIndex),
		ObservedAt:        s.ObservedAt,
		Location:          s.Location,
		Hourly:            hourly,
	})
}

func nullable(v float64) *float64 {
	if IsMissing(v) {
		return nil
	}
	return &v
}

// RefreshReason records what started a fetch cycle.
type RefreshReason string

const (
	RefreshLocationChange  RefreshReason = "location_change"
	RefreshHourlyCheck     RefreshReason = "hourly_check"
	RefreshBackgroundTimer RefreshReason = "background_timer"
	RefreshManual          RefreshReason = "manual"
)

// Repeat is the recurrence policy of a scheduled notification.
type Repeat string

const (
	RepeatNone  Repeat = "none"
	RepeatDaily Repeat = "daily"
)

// NotificationKind distinguishes the three notification families.
type NotificationKind string

const (
	KindMorningSummary NotificationKind = "morning_summary"
	KindDetailUpdate   NotificationKind = "detail_update"
	KindWeatherAlert   NotificationKind = "weather_alert"
)

// ScheduledNotification is a pending entry in the delivery subsystem. It is
// created by the scheduler at fetch time and superseded on the next cycle.
type ScheduledNotification struct {
	ID        string           `json:"id"`
	Channel   string           `json:"channel"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	FireAt    time.Time        `json:"fire_at"`
	Repeat    Repeat           `json:"repeat"`
	Kind      NotificationKind `json:"kind"`
	PlaySound bool             `json:"play_sound"`
	Vibrate   bool             `json:"vibrate"`
	CreatedAt time.Time        `json:"created_at"`
}

// NextAfter returns the next fire time strictly after now for a daily entry,
// keeping the wall-clock time of FireAt in loc. Stores may return FireAt in
// UTC, so the zone the entry was scheduled in must be supplied; a nil loc uses
// FireAt's own zone. Non-repeating entries return the zero time.
func (n ScheduledNotification) NextAfter(now time.Time, loc *time.Location) time.Time {
	if n.Repeat != RepeatDaily {
		return time.Time{}
	}
	next := n.FireAt
	if loc != nil {
		next = next.In(loc)
	}
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
