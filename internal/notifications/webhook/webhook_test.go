package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superiorweather/internal/external"
	"superiorweather/internal/types"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) With(args ...any) types.Logger { return m }

var fireAt = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func alertNotification() types.ScheduledNotification {
	return types.ScheduledNotification{
		ID:        "ntf_123",
		Channel:   "weather-alerts",
		Title:     "Weather Alert",
		Body:      "⚡ Thunderstorm Alert! Take necessary precautions.",
		FireAt:    fireAt,
		Repeat:    types.RepeatNone,
		Kind:      types.KindWeatherAlert,
		PlaySound: true,
		Vibrate:   true,
	}
}

func detailNotification() types.ScheduledNotification {
	return types.ScheduledNotification{
		ID:     "ntf_456",
		Title:  "Weather Update",
		Body:   "Temperature: 42°F\nFeels like: 38°F\nConditions: Rain",
		FireAt: fireAt,
		Repeat: types.RepeatDaily,
		Kind:   types.KindDetailUpdate,
	}
}

func newBase() *external.BaseClient {
	return external.NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "webhook-test", external.DefaultBreakerSettings(), "SuperiorWeather-Test/1.0")
}

// --- Registry ---

func TestPlatformRegistry_Detect(t *testing.T) {
	r := NewPlatformRegistry()

	tests := []struct {
		url      string
		override string
		want     Platform
	}{
		{"https://hooks.slack.com/services/T/B/X", "", PlatformSlack},
		{"https://discord.com/api/webhooks/1/abc", "", PlatformDiscord},
		{"https://prod-1.westus.logic.azure.com/workflows/x", "", PlatformTeams},
		{"https://acme.webhook.office.com/webhookb2/x", "", PlatformTeams},
		{"https://chat.googleapis.com/v1/spaces/x/messages", "", PlatformGoogleChat},
		{"https://example.com/hook", "", PlatformGeneric},
		{"https://example.com/hook", "Slack", PlatformSlack},
		{"https://hooks.slack.com/services/T/B/X", "nonsense", PlatformSlack},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Detect(tt.url, tt.override), tt.url)
	}

	assert.Equal(t, PlatformGeneric, r.Get(Platform("unknown")).Platform())
}

// --- Formatters ---

func TestSlackFormatter_DetailLinesBecomeFields(t *testing.T) {
	data, err := (&SlackFormatter{}).Format(detailNotification())
	require.NoError(t, err)

	var payload SlackPayload
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Contains(t, payload.Text, "Weather Update")
	require.Len(t, payload.Blocks, 3)
	assert.Equal(t, "header", payload.Blocks[0].Type)
	require.Len(t, payload.Blocks[1].Fields, 3)
	assert.Equal(t, "Conditions: Rain", payload.Blocks[1].Fields[2].Text)
	assert.Equal(t, "context", payload.Blocks[2].Type)
	assert.Contains(t, payload.Blocks[2].Elements[0].Text, "Detail Update")
}

func TestSlackFormatter_AlertBodyIsSection(t *testing.T) {
	data, err := (&SlackFormatter{}).Format(alertNotification())
	require.NoError(t, err)

	var payload SlackPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	require.NotNil(t, payload.Blocks[1].Text)
	assert.Equal(t, alertNotification().Body, payload.Blocks[1].Text.Text)
}

func TestSlackFormatter_ValidateResponse(t *testing.T) {
	f := &SlackFormatter{}

	assert.NoError(t, f.ValidateResponse(200, []byte("ok")))
	assert.NoError(t, f.ValidateResponse(200, nil))
	assert.ErrorContains(t, f.ValidateResponse(200, []byte(`{"ok":false,"error":"invalid_token"}`)), "invalid_token")
	assert.ErrorContains(t, f.ValidateResponse(200, []byte("channel_is_archived")), "channel_is_archived")
	assert.Error(t, f.ValidateResponse(404, []byte("no_service")))
}

func TestDiscordFormatter_Format(t *testing.T) {
	data, err := (&DiscordFormatter{}).Format(alertNotification())
	require.NoError(t, err)

	var payload DiscordPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, colorAlert, payload.Embeds[0].Color)
	assert.Equal(t, "2026-03-10T12:00:00Z", payload.Embeds[0].Timestamp)
	assert.NotEmpty(t, payload.Content, "alerts ping the channel")

	data, err = (&DiscordFormatter{}).Format(detailNotification())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Empty(t, payload.Content)

	assert.ErrorContains(t, (&DiscordFormatter{}).ValidateResponse(400, []byte(`{"message":"Invalid Webhook Token"}`)), "Invalid Webhook Token")
}

func TestTeamsFormatter_Format(t *testing.T) {
	data, err := (&TeamsFormatter{}).Format(alertNotification())
	require.NoError(t, err)

	var payload TeamsPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Attachments, 1)
	card := payload.Attachments[0].Content
	assert.Equal(t, "AdaptiveCard", card.Type)
	assert.Equal(t, "Weather Alert", card.Body[0].Text)
	assert.Equal(t, "Weather Alert", card.Body[2].Facts[0].Value)
}

func TestGoogleChatFormatter_EscapesLines(t *testing.T) {
	n := detailNotification()
	n.Body = "a < b\nc"

	data, err := (&GoogleChatFormatter{}).Format(n)
	require.NoError(t, err)

	var payload GoogleChatPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	widgets := payload.Cards[0].Sections[0].Widgets
	require.Len(t, widgets, 2)
	assert.Equal(t, "a &lt; b", widgets[0].TextParagraph.Text)
}

func TestGenericFormatter_Format(t *testing.T) {
	data, err := (&GenericFormatter{}).Format(alertNotification())
	require.NoError(t, err)

	var payload GenericPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "ntf_123", payload.NotificationID)
	assert.Equal(t, "weather_alert", payload.Kind)
	assert.Equal(t, "2026-03-10T12:00:00Z", payload.FireAt)
	assert.True(t, payload.PlaySound)
}

// --- Signer ---

func TestSigner_SignAndVerify(t *testing.T) {
	now := time.Unix(1773144000, 0)
	payload := []byte(`{"a":1}`)

	s := NewSigner("current", "", time.Time{})
	header := s.Sign(payload, now)

	assert.True(t, strings.HasPrefix(header, "t=1773144000,v1="))
	assert.NotContains(t, header, "v1_old")
	assert.True(t, s.Verify(payload, header))
	assert.False(t, s.Verify([]byte(`{"a":2}`), header))
	assert.False(t, NewSigner("other", "", time.Time{}).Verify(payload, header))
	assert.False(t, s.Verify(payload, "garbage"))
}

func TestSigner_RotationWindow(t *testing.T) {
	now := time.Unix(1773144000, 0)
	payload := []byte("x")
	expiry := now.Add(time.Hour)

	s := NewSigner("new", "old", expiry)
	header := s.Sign(payload, now)
	assert.Contains(t, header, "v1_old=")

	// A receiver still holding the old secret accepts it.
	assert.True(t, NewSigner("old", "", time.Time{}).Verify(payload, header))

	expired := s.Sign(payload, expiry.Add(time.Second))
	assert.NotContains(t, expired, "v1_old")
}

// --- Channel ---

func TestNewChannel_Validation(t *testing.T) {
	_, err := NewChannel(Config{}, newBase(), &mockLogger{})
	assert.Error(t, err)

	_, err = NewChannel(Config{URL: "https://x"}, nil, &mockLogger{})
	assert.Error(t, err)

	ch, err := NewChannel(Config{URL: "https://hooks.slack.com/services/x"}, newBase(), &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, PlatformSlack, ch.Platform())
	assert.Equal(t, "webhook", ch.Name())
}

func TestChannel_DeliverSignsAndPosts(t *testing.T) {
	var (
		gotBody   []byte
		gotSig    string
		gotEvent  string
		gotID     string
		gotMethod string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get("X-Superior-Event")
		gotID = r.Header.Get("X-Superior-Notification-Id")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch, err := NewChannel(Config{URL: server.URL, Secret: "s3cret"}, newBase(), &mockLogger{})
	require.NoError(t, err)
	ch.SetClock(types.FixedClock{T: fireAt})

	require.NoError(t, ch.Deliver(context.Background(), alertNotification()))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "weather_alert", gotEvent)
	assert.Equal(t, "ntf_123", gotID)
	assert.True(t, NewSigner("s3cret", "", time.Time{}).Verify(gotBody, gotSig))

	var payload GenericPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "Weather Alert", payload.Title)
}

func TestChannel_DeliverUnsignedWithoutSecret(t *testing.T) {
	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
	}))
	defer server.Close()

	ch, err := NewChannel(Config{URL: server.URL}, newBase(), &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, ch.Deliver(context.Background(), alertNotification()))
	assert.Empty(t, gotSig)
}

func TestChannel_DeliverFailures(t *testing.T) {
	tests := []struct {
		name     string
		override string
		status   int
		body     string
		want     types.ErrorCode
	}{
		{"slack soft failure", "slack", 200, `{"ok":false,"error":"invalid_payload"}`, types.ErrCodeUpstreamDelivery},
		{"gone", "", 410, "", types.ErrCodeUpstreamDelivery},
		{"client error", "", 400, "bad", types.ErrCodeUpstreamDelivery},
		{"server error", "", 503, "", types.ErrCodeUpstreamUnavailable},
		{"rate limited", "", 429, "", types.ErrCodeUpstreamRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ch, err := NewChannel(Config{URL: server.URL, PlatformOverride: tt.override}, newBase(), &mockLogger{})
			require.NoError(t, err)

			err = ch.Deliver(context.Background(), alertNotification())

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, tt.want, appErr.Code)
		})
	}
}
