package core

import (
	"fmt"
	"strings"

	"superiorweather/internal/alerts"
	"superiorweather/internal/types"
)

// MorningSummary builds the morning greeting body.
func MorningSummary(s types.Snapshot) string {
	return fmt.Sprintf("🌅 Good Morning from Superior Weather!\nTemperature: %s°F, Condition: %s",
		alerts.Round(s.Temperature), s.Conditions)
}

// FullDetail builds the periodic update body. The alert section is appended
// only when activeAlerts is non-empty.
func FullDetail(s types.Snapshot, activeAlerts []string) string {
	var b strings.Builder
	b.WriteString("🌤️ Weather Update:\n")
	fmt.Fprintf(&b, "• Condition: %s\n", s.Conditions)
	fmt.Fprintf(&b, "• Temperature: %s°F\n", alerts.Round(s.Temperature))
	fmt.Fprintf(&b, "• Humidity: %s%%\n", alerts.Round(s.Humidity))
	fmt.Fprintf(&b, "• Precipitation: %s%% chance\n", alerts.Round(s.PrecipProbability))
	fmt.Fprintf(&b, "• UV Index: %s\n", alerts.Round(s.UVIndex))
	fmt.Fprintf(&b, "• Wind Speed: %s km/h", alerts.Round(s.WindSpeed))

	if len(activeAlerts) > 0 {
		b.WriteString("\n\n⚠️ Weather Alerts:\n")
		b.WriteString(strings.Join(activeAlerts, "\n"))
	}
	return b.String()
}
