// Package alerts turns a weather snapshot into human-readable hazard messages.
//
// GenerateAlerts is pure and total: it has no state, never fails, and a
// missing numeric field (types.Missing) simply fails every comparison so its
// rule does not fire.
package alerts

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"superiorweather/internal/types"
)

// Category names in evaluation order.
const (
	CategoryHeat          = "heat"
	CategoryPrecipitation = "precipitation"
	CategoryWind          = "wind"
	CategoryUV            = "uv"
	CategoryCondition     = "condition"
	CategoryHumidity      = "humidity"
)

// Heat thresholds in °F.
const (
	ExtremeHeatThreshold = 40.0
	HeatThreshold        = 35.0
	FreezingThreshold    = 0.0
)

// Precipitation thresholds in percent (strictly greater than).
const (
	HeavyRainThreshold  = 75.0
	RainLikelyThreshold = 50.0
)

// Wind thresholds in km/h (strictly greater than).
const (
	SevereWindThreshold = 50.0
	StrongWindThreshold = 30.0
)

// UV index thresholds (greater or equal).
const (
	ExtremeUVThreshold = 8.0
	HighUVThreshold    = 6.0
)

// Humidity thresholds in percent.
const (
	HighHumidityThreshold = 80.0
	LowHumidityThreshold  = 30.0
)

// rule evaluates one category. At most one tier fires per category.
type rule struct {
	category string
	eval     func(s types.Snapshot) (string, bool)
}

var rules = []rule{
	{CategoryHeat, heatAlert},
	{CategoryPrecipitation, precipitationAlert},
	{CategoryWind, windAlert},
	{CategoryUV, uvAlert},
	{CategoryCondition, conditionAlert},
	{CategoryHumidity, humidityAlert},
}

// Categories returns the rule categories in evaluation order.
func Categories() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.category
	}
	return out
}

// GenerateAlerts evaluates every category in order and returns the fired
// messages. The result is never nil.
func GenerateAlerts(s types.Snapshot) []string {
	alerts := make([]string, 0, len(rules))
	for _, r := range rules {
		if msg, ok := r.eval(s); ok {
			alerts = append(alerts, msg)
		}
	}
	return alerts
}

func heatAlert(s types.Snapshot) (string, bool) {
	t := s.Temperature
	switch {
	case t >= ExtremeHeatThreshold:
		return fmt.Sprintf("🔥 EXTREME Heat Alert! Temperature is dangerously high at %s°F. Stay indoors and stay hydrated!", Round(t)), true
	case t >= HeatThreshold:
		return fmt.Sprintf("🌡️ Heat Alert! High temperature of %s°F. Stay hydrated and avoid prolonged sun exposure.", Round(t)), true
	case t <= FreezingThreshold:
		return fmt.Sprintf("❄️ Freezing Alert! Temperature is below freezing at %s°F. Bundle up!", Round(t)), true
	}
	return "", false
}

func precipitationAlert(s types.Snapshot) (string, bool) {
	p := s.PrecipProbability
	switch {
	case p > HeavyRainThreshold:
		return fmt.Sprintf("⛈️ Heavy Rain Alert! %s%% chance of precipitation. Carry an umbrella!", Round(p)), true
	case p > RainLikelyThreshold:
		return fmt.Sprintf("☔ Rain Likely! %s%% chance of precipitation.", Round(p)), true
	}
	return "", false
}

func windAlert(s types.Snapshot) (string, bool) {
	w := s.WindSpeed
	switch {
	case w > SevereWindThreshold:
		return fmt.Sprintf("🌪️ Severe Wind Alert! Very strong winds at %skm/h. Stay safe!", Round(w)), true
	case w > StrongWindThreshold:
		return fmt.Sprintf("💨 Strong Wind Alert! Winds at %skm/h.", Round(w)), true
	}
	return "", false
}

func uvAlert(s types.Snapshot) (string, bool) {
	u := s.UVIndex
	switch {
	case u >= ExtremeUVThreshold:
		return fmt.Sprintf("☀️ Extreme UV Alert! UV Index: %s. Use strong sun protection!", Round(u)), true
	case u >= HighUVThreshold:
		return fmt.Sprintf("😎 High UV Alert! UV Index: %s. Use sun protection.", Round(u)), true
	}
	return "", false
}

func conditionAlert(s types.Snapshot) (string, bool) {
	c := cases.Fold().String(s.Conditions)
	switch {
	case strings.Contains(c, "thunderstorm"):
		return "⚡ Thunderstorm Alert! Take necessary precautions.", true
	case strings.Contains(c, "snow"):
		return "🌨️ Snow Alert! Expect snowfall and possible travel disruptions.", true
	case strings.Contains(c, "fog"):
		return "🌫️ Foggy Conditions! Drive carefully.", true
	}
	return "", false
}

func humidityAlert(s types.Snapshot) (string, bool) {
	h := s.Humidity
	switch {
	case h > HighHumidityThreshold:
		return fmt.Sprintf("💧 High Humidity Alert! %s%% humidity. May feel uncomfortable.", Round(h)), true
	case h < LowHumidityThreshold:
		return fmt.Sprintf("📉 Low Humidity Alert! %s%% humidity. Stay hydrated.", Round(h)), true
	}
	return "", false
}

// Round formats v rounded to the nearest integer with halves going up
// (2.5 -> 3, -2.5 -> -2). Missing values render as "N/A".
func Round(v float64) string {
	if types.IsMissing(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	r := math.Floor(v + 0.5)
	if r == 0 {
		// Avoid "-0".
		r = 0
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}
