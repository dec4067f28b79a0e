package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"superiorweather/internal/types"
)

// GenericFormatter serializes the notification as a stable JSON envelope. It
// is the default for URLs that match no known platform pattern.
type GenericFormatter struct{}

// Platform returns the platform identifier.
func (f *GenericFormatter) Platform() Platform {
	return PlatformGeneric
}

// Format transforms a notification into generic JSON.
func (f *GenericFormatter) Format(n types.ScheduledNotification) ([]byte, error) {
	return json.Marshal(GenericPayload{
		NotificationID: n.ID,
		Kind:           string(n.Kind),
		Channel:        n.Channel,
		Title:          n.Title,
		Body:           n.Body,
		FireAt:         n.FireAt.UTC().Format(time.RFC3339),
		Repeat:         string(n.Repeat),
		PlaySound:      n.PlaySound,
		Vibrate:        n.Vibrate,
	})
}

// ValidateResponse for generic webhooks simply checks the HTTP status code.
func (f *GenericFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("generic webhook: unexpected status %d: %s", statusCode, truncateBody(body))
}
