package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"superiorweather/internal/types"
)

// Discord rejects embed descriptions longer than this.
const maxDiscordDescription = 4096

// DiscordFormatter formats notifications as Discord webhook JSON with embeds.
type DiscordFormatter struct{}

// Platform returns the platform identifier.
func (f *DiscordFormatter) Platform() Platform {
	return PlatformDiscord
}

// Format transforms a notification into Discord webhook JSON.
func (f *DiscordFormatter) Format(n types.ScheduledNotification) ([]byte, error) {
	desc := n.Body
	if len(desc) > maxDiscordDescription {
		desc = desc[:maxDiscordDescription]
	}

	embed := DiscordEmbed{
		Title:       titleOf(n),
		Description: desc,
		Color:       kindColor(n.Kind),
		Footer:      &DiscordFooter{Text: fmt.Sprintf("%s | %s", productName, kindLabel(n.Kind))},
	}
	if !n.FireAt.IsZero() {
		embed.Timestamp = n.FireAt.UTC().Format(time.RFC3339)
	}

	payload := DiscordPayload{
		Username: productName,
		Embeds:   []DiscordEmbed{embed},
	}
	// Alerts ping the channel; scheduled summaries stay quiet.
	if n.Kind == types.KindWeatherAlert {
		payload.Content = n.Body
	}

	return json.Marshal(payload)
}

// ValidateResponse checks the Discord webhook response. Discord returns 204
// No Content on success for webhook messages.
func (f *DiscordFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return fmt.Errorf("discord: API error: %s", resp.Message)
	}

	return fmt.Errorf("discord: unexpected status %d: %s", statusCode, truncateBody(body))
}
