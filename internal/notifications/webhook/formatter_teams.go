package webhook

import (
	"encoding/json"
	"fmt"

	"superiorweather/internal/types"
)

// TeamsFormatter formats notifications as Microsoft Teams Adaptive Card JSON
// targeting the Power Automate Workflow schema.
type TeamsFormatter struct{}

// Platform returns the platform identifier.
func (f *TeamsFormatter) Platform() Platform {
	return PlatformTeams
}

// Format transforms a notification into Teams Adaptive Card JSON.
func (f *TeamsFormatter) Format(n types.ScheduledNotification) ([]byte, error) {
	body := []AdaptiveItem{
		{
			Type:   "TextBlock",
			Text:   titleOf(n),
			Size:   "Large",
			Weight: "Bolder",
			Wrap:   true,
		},
		{
			Type: "TextBlock",
			Text: n.Body,
			Wrap: true,
		},
		{
			Type: "FactSet",
			Facts: []Fact{
				{Title: "Kind", Value: kindLabel(n.Kind)},
				{Title: "Scheduled", Value: n.FireAt.UTC().Format("Mon 15:04 MST")},
			},
		},
	}

	payload := TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{
			{
				ContentType: "application/vnd.microsoft.card.adaptive",
				Content: AdaptiveCard{
					Type:    "AdaptiveCard",
					Version: "1.4",
					Body:    body,
				},
			},
		},
	}

	return json.Marshal(payload)
}

// ValidateResponse checks the Teams webhook response. Teams Power Automate
// Workflows respond with 202 Accepted on success.
func (f *TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("teams: unexpected status %d: %s", statusCode, truncateBody(body))
}
