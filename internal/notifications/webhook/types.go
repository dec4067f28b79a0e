package webhook

import (
	"superiorweather/internal/types"
)

// Platform identifies a webhook destination platform.
type Platform string

const (
	// PlatformGeneric is the default platform for unknown webhook URLs.
	PlatformGeneric Platform = "generic"

	// PlatformSlack represents Slack incoming webhooks.
	PlatformSlack Platform = "slack"

	// PlatformDiscord represents Discord webhook endpoints.
	PlatformDiscord Platform = "discord"

	// PlatformTeams represents Microsoft Teams Power Automate Workflows.
	PlatformTeams Platform = "teams"

	// PlatformGoogleChat represents Google Chat webhook endpoints.
	PlatformGoogleChat Platform = "google_chat"
)

// PlatformFormatter transforms a scheduled notification into
// platform-specific JSON.
type PlatformFormatter interface {
	// Format builds the request body for n.
	Format(n types.ScheduledNotification) ([]byte, error)

	// Platform returns the enum identifier for metrics and logs.
	Platform() Platform

	// ValidateResponse interprets the HTTP response body to catch "soft failures"
	// (e.g., Slack returning HTTP 200 with "ok": false).
	ValidateResponse(statusCode int, body []byte) error
}

// --- Slack Payload Types (Block Kit) ---

// SlackPayload is the top-level structure for Slack Block Kit messages.
type SlackPayload struct {
	Text   string       `json:"text"`   // Fallback text for push notifications
	Blocks []SlackBlock `json:"blocks"` // Rich layout
}

// SlackBlock represents a single block in a Slack Block Kit message.
type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Fields   []*SlackText `json:"fields,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

// SlackText is a text composition object for Slack Block Kit.
type SlackText struct {
	Type string `json:"type"` // "plain_text", "mrkdwn"
	Text string `json:"text"`
}

// --- Microsoft Teams Payload Types (Adaptive Cards) ---

// TeamsPayload is the top-level structure for Teams Power Automate messages.
type TeamsPayload struct {
	Type        string            `json:"type"` // "message"
	Attachments []TeamsAttachment `json:"attachments"`
}

// TeamsAttachment wraps an Adaptive Card for Teams delivery.
type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

// AdaptiveCard is the Microsoft Adaptive Card structure.
type AdaptiveCard struct {
	Type    string         `json:"type"`
	Version string         `json:"version"`
	Body    []AdaptiveItem `json:"body"`
}

// AdaptiveItem represents an element in the Adaptive Card body.
type AdaptiveItem struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	Facts  []Fact `json:"facts,omitempty"`
}

// Fact is a key-value pair in a Teams FactSet.
type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// --- Discord Payload Types (Embeds) ---

// DiscordPayload is the top-level structure for Discord webhook messages.
type DiscordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents an embed in a Discord webhook message.
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordFooter is the footer of a Discord embed.
type DiscordFooter struct {
	Text string `json:"text"`
}

// --- Google Chat Payload Types (Cards) ---

// GoogleChatPayload is the top-level structure for Google Chat card messages.
type GoogleChatPayload struct {
	Text  string       `json:"text,omitempty"`
	Cards []GoogleCard `json:"cards"`
}

// GoogleCard represents a card in a Google Chat message.
type GoogleCard struct {
	Header   GoogleHeader    `json:"header"`
	Sections []GoogleSection `json:"sections"`
}

// GoogleHeader is the header of a Google Chat card.
type GoogleHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

// GoogleSection is a section within a Google Chat card.
type GoogleSection struct {
	Widgets []GoogleWidget `json:"widgets"`
}

// GoogleWidget is a widget in a Google Chat card section.
type GoogleWidget struct {
	TextParagraph *GoogleTextParagraph `json:"textParagraph,omitempty"`
}

// GoogleTextParagraph represents a text paragraph widget.
type GoogleTextParagraph struct {
	Text string `json:"text"`
}

// --- Generic ---

// GenericPayload is the stable envelope sent to endpoints that match no
// known platform.
type GenericPayload struct {
	NotificationID string `json:"notification_id"`
	Kind           string `json:"kind"`
	Channel        string `json:"channel"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	FireAt         string `json:"fire_at"`
	Repeat         string `json:"repeat"`
	PlaySound      bool   `json:"play_sound"`
	Vibrate        bool   `json:"vibrate"`
}
