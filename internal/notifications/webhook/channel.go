// Package webhook delivers due notifications to an HTTP endpoint.
//
// It handles platform auto-detection (Slack, Teams, Discord, Google Chat),
// payload formatting using platform-specific JSON schemas and HMAC signing
// with dual-validity rotation support. Each notification is POSTed once;
// failures are reported to the dispatcher and never retried.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"superiorweather/internal/external"
	"superiorweather/internal/types"
)

// maxResponseBodyRead limits how much of a response body we read for
// validation and error messages.
const maxResponseBodyRead = 4096

// Config configures a webhook Channel.
type Config struct {
	URL              string
	PlatformOverride string
	Secret           types.SecretString
	PreviousSecret   types.SecretString
	// PreviousSecretExpiresAt bounds how long PreviousSecret is co-signed.
	PreviousSecretExpiresAt time.Time
}

// Channel POSTs each due notification to a single configured URL. It
// satisfies delivery.Sink.
type Channel struct {
	url       string
	platform  Platform
	formatter PlatformFormatter
	client    *external.BaseClient
	signer    *Signer
	logger    types.Logger
	clock     types.Clock
}

// NewChannel creates a Channel. The destination platform is detected once
// from the URL and override.
func NewChannel(cfg Config, client *external.BaseClient, logger types.Logger) (*Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook channel: url is required")
	}
	if client == nil {
		return nil, fmt.Errorf("webhook channel: client is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("webhook channel: logger is nil")
	}

	registry := NewPlatformRegistry()
	platform := registry.Detect(cfg.URL, cfg.PlatformOverride)
	return &Channel{
		url:       cfg.URL,
		platform:  platform,
		formatter: registry.Get(platform),
		client:    client,
		signer:    NewSigner(cfg.Secret, cfg.PreviousSecret, cfg.PreviousSecretExpiresAt),
		logger:    logger,
		clock:     types.RealClock{},
	}, nil
}

// SetClock overrides the clock for testing.
func (c *Channel) SetClock(clock types.Clock) {
	c.clock = clock
}

// Name identifies the channel in metrics and logs.
func (c *Channel) Name() string { return "webhook" }

// Platform returns the detected destination platform.
func (c *Channel) Platform() Platform { return c.platform }

// Deliver formats, signs and POSTs n.
//
// Response handling:
//   - 2xx: validate the platform-specific body (Slack soft failures)
//   - 410 Gone: the endpoint was removed; reported as a delivery failure
//   - anything else: a delivery failure carrying the status and body excerpt
//
// 5xx, 429 and network failures surface as the BaseClient's upstream errors.
func (c *Channel) Deliver(ctx context.Context, n types.ScheduledNotification) error {
	payload, err := c.formatter.Format(n)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to format webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Superior-Event", string(n.Kind))
	req.Header.Set("X-Superior-Notification-Id", n.ID)
	if c.signer.Enabled() {
		req.Header.Set(SignatureHeader, c.signer.Sign(payload, c.clock.Now()))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("webhook transport failure",
			"notification_id", n.ID,
			"platform", string(c.platform),
			"error", err.Error(),
		)
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if resp.StatusCode == http.StatusGone {
		c.logger.Warn("webhook endpoint gone (410)", "platform", string(c.platform))
		return types.NewAppError(types.ErrCodeUpstreamDelivery, "webhook endpoint no longer exists", nil).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if err := c.formatter.ValidateResponse(resp.StatusCode, body); err != nil {
		c.logger.Warn("webhook rejected",
			"notification_id", n.ID,
			"platform", string(c.platform),
			"status", resp.StatusCode,
			"error", err.Error(),
		)
		return types.NewAppError(types.ErrCodeUpstreamDelivery, "webhook delivery rejected", err).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	c.logger.Info("webhook delivered",
		"notification_id", n.ID,
		"platform", string(c.platform),
		"status", resp.StatusCode,
	)
	return nil
}
