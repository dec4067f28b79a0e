package types

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential (weather API key, webhook signing secret,
// database URL). fmt and encoding/json only ever see a placeholder; call
// Unmask where the raw value is required.
type SecretString string

// String returns the redaction placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redaction placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty secret was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
