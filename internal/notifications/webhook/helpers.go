package webhook

import (
	"superiorweather/internal/types"
)

const productName = "Superior Weather"

// Embed colours per notification kind.
const (
	colorMorning = 0x2196F3 // Blue
	colorDetail  = 0x4CAF50 // Green
	colorAlert   = 0xF44336 // Red
)

// kindLabel is the human-readable name of a notification kind.
func kindLabel(k types.NotificationKind) string {
	switch k {
	case types.KindMorningSummary:
		return "Morning Summary"
	case types.KindDetailUpdate:
		return "Detail Update"
	case types.KindWeatherAlert:
		return "Weather Alert"
	default:
		return "Notification"
	}
}

func kindColor(k types.NotificationKind) int {
	switch k {
	case types.KindWeatherAlert:
		return colorAlert
	case types.KindDetailUpdate:
		return colorDetail
	default:
		return colorMorning
	}
}

// titleOf falls back to the kind label for untitled notifications.
func titleOf(n types.ScheduledNotification) string {
	if n.Title != "" {
		return n.Title
	}
	return kindLabel(n.Kind)
}

// truncateBody returns a truncated version of the response body for error messages.
func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
