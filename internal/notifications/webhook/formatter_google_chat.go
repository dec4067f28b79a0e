package webhook

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"superiorweather/internal/types"
)

// GoogleChatFormatter formats notifications as Google Chat card JSON.
type GoogleChatFormatter struct{}

// Platform returns the platform identifier.
func (f *GoogleChatFormatter) Platform() Platform {
	return PlatformGoogleChat
}

// Format transforms a notification into Google Chat card JSON. Each body line
// becomes its own paragraph widget.
func (f *GoogleChatFormatter) Format(n types.ScheduledNotification) ([]byte, error) {
	var widgets []GoogleWidget
	for _, line := range strings.Split(n.Body, "\n") {
		if line == "" {
			continue
		}
		widgets = append(widgets, GoogleWidget{
			TextParagraph: &GoogleTextParagraph{Text: html.EscapeString(line)},
		})
	}
	if len(widgets) == 0 {
		widgets = append(widgets, GoogleWidget{
			TextParagraph: &GoogleTextParagraph{Text: "<b>" + kindLabel(n.Kind) + "</b>"},
		})
	}

	payload := GoogleChatPayload{
		Cards: []GoogleCard{
			{
				Header: GoogleHeader{
					Title:    titleOf(n),
					Subtitle: fmt.Sprintf("%s | %s", productName, kindLabel(n.Kind)),
				},
				Sections: []GoogleSection{{Widgets: widgets}},
			},
		},
	}

	return json.Marshal(payload)
}

// ValidateResponse checks the Google Chat webhook response.
func (f *GoogleChatFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return fmt.Errorf("google chat: API error: %s", resp.Error.Message)
	}

	return fmt.Errorf("google chat: unexpected status %d: %s", statusCode, truncateBody(body))
}
