package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "vc-key-UB5VAZ"

func TestSecretString_FmtRedaction(t *testing.T) {
	s := SecretString(testSecret)

	assert.Equal(t, redactedPlaceholder, s.String())
	assert.Equal(t, "key="+redactedPlaceholder, fmt.Sprintf("key=%s", s))
	assert.Equal(t, "key="+redactedPlaceholder, fmt.Sprintf("key=%v", s))
	assert.NotContains(t, fmt.Sprintf("%+v", struct{ Key SecretString }{s}), testSecret)
}

func TestSecretString_JSONRedaction(t *testing.T) {
	payload := struct {
		APIKey SecretString `json:"api_key"`
	}{APIKey: SecretString(testSecret)}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_key":"***REDACTED***"}`, string(data))
}

func TestSecretString_SlogRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("config loaded", "weather_api_key", SecretString(testSecret))

	assert.NotContains(t, buf.String(), testSecret)
	assert.Contains(t, buf.String(), redactedPlaceholder)
}

func TestSecretString_UnmaskAndIsSet(t *testing.T) {
	assert.Equal(t, testSecret, SecretString(testSecret).Unmask())
	assert.True(t, SecretString(testSecret).IsSet())
	assert.False(t, SecretString("").IsSet())
}
