package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"superiorweather/internal/types"
)

// SlackFormatter formats notifications as Slack Block Kit JSON.
type SlackFormatter struct{}

// Platform returns the platform identifier.
func (f *SlackFormatter) Platform() Platform {
	return PlatformSlack
}

// Format transforms a notification into Slack Block Kit JSON.
func (f *SlackFormatter) Format(n types.ScheduledNotification) ([]byte, error) {
	title := titleOf(n)

	payload := SlackPayload{
		Text: fmt.Sprintf("%s: %s", title, n.Body),
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackText{Type: "plain_text", Text: title},
			},
		},
	}

	// Detail updates carry one reading per line; render them as fields.
	lines := strings.Split(n.Body, "\n")
	if n.Kind == types.KindDetailUpdate && len(lines) > 1 {
		fields := make([]*SlackText, 0, len(lines))
		for _, line := range lines {
			if line == "" {
				continue
			}
			fields = append(fields, &SlackText{Type: "mrkdwn", Text: line})
		}
		// Block Kit allows at most 10 fields per section.
		for len(fields) > 0 {
			end := min(len(fields), 10)
			payload.Blocks = append(payload.Blocks, SlackBlock{Type: "section", Fields: fields[:end]})
			fields = fields[end:]
		}
	} else {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: n.Body},
		})
	}

	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type: "context",
		Elements: []*SlackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("*%s* | %s", kindLabel(n.Kind), productName)},
		},
	})

	return json.Marshal(payload)
}

// ValidateResponse checks for Slack's "soft failure" pattern where the API
// returns HTTP 200 but the body indicates an error (e.g., "ok": false or
// a plain text error message).
func (f *SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d: %s", statusCode, truncateBody(body))
	}

	bodyStr := strings.TrimSpace(string(body))

	// Slack incoming webhooks return "ok" as plain text on success.
	if bodyStr == "ok" || bodyStr == "" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	knownErrors := []string{
		"no_text",
		"channel_not_found",
		"channel_is_archived",
		"invalid_payload",
		"too_many_attachments",
	}
	for _, known := range knownErrors {
		if bodyStr == known {
			return fmt.Errorf("slack: API error: %s", bodyStr)
		}
	}

	return nil
}
