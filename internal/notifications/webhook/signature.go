package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"superiorweather/internal/types"
)

// SignatureHeader carries the payload signature on every webhook request.
//
// Format: t=<unix>,v1=<hmac>[,v1_old=<hmac>]
const SignatureHeader = "X-Superior-Signature"

// Signer computes HMAC-SHA256 payload signatures with dual-validity support
// for zero-downtime secret rotation. The signed content is
// "{unix_timestamp}.{payload}".
type Signer struct {
	secret         types.SecretString
	previous       types.SecretString
	previousExpiry time.Time
}

// NewSigner creates a Signer. previous is included as v1_old until
// previousExpiry; a zero expiry never includes it.
func NewSigner(secret, previous types.SecretString, previousExpiry time.Time) *Signer {
	return &Signer{secret: secret, previous: previous, previousExpiry: previousExpiry}
}

// Enabled reports whether a signing secret is configured.
func (s *Signer) Enabled() bool {
	return s != nil && s.secret.IsSet()
}

// Sign returns the signature header value for payload at now.
func (s *Signer) Sign(payload []byte, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	signed := ts + "." + string(payload)

	header := "t=" + ts + ",v1=" + computeHMAC(signed, s.secret.Unmask())

	if s.previous.IsSet() && !s.previousExpiry.IsZero() && !now.After(s.previousExpiry) {
		header += ",v1_old=" + computeHMAC(signed, s.previous.Unmask())
	}
	return header
}

// Verify reports whether header signs payload under the current or the
// previous secret.
func (s *Signer) Verify(payload []byte, header string) bool {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || parts.v1 == "" {
		return false
	}
	signed := parts.timestamp + "." + string(payload)

	for _, secret := range []types.SecretString{s.secret, s.previous} {
		if !secret.IsSet() {
			continue
		}
		expected := computeHMAC(signed, secret.Unmask())
		if hmac.Equal([]byte(parts.v1), []byte(expected)) {
			return true
		}
		if parts.v1Old != "" && hmac.Equal([]byte(parts.v1Old), []byte(expected)) {
			return true
		}
	}
	return false
}

type signatureParts struct {
	timestamp string
	v1        string
	v1Old     string
}

// parseSignatureHeader breaks a signature header into its component parts.
func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			parts.timestamp = value
		case "v1":
			parts.v1 = value
		case "v1_old":
			parts.v1Old = value
		}
	}
	return parts
}

// computeHMAC returns the lowercase hex HMAC-SHA256 of content under key.
func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
