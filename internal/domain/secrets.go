package domain

import "log/slog"

const redacted = "[REDACTED]"

// SecretString wraps sensitive string values such as the trust secret.
// It formats and logs as a placeholder; only Expose yields the value.
type SecretString string

func (s SecretString) String() string {
	return redacted
}

// LogValue implements slog.LogValuer so the value is masked even when
// the handler's ReplaceAttr does not recognise the key.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// GoString keeps %#v from printing the underlying value.
func (s SecretString) GoString() string {
	return redacted
}

// Expose returns the actual secret value.
// Call it only at the point of use (e.g. building a verification key).
func (s SecretString) Expose() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}

// SecretBytes is the byte-slice form of SecretString, used for key material.
type SecretBytes []byte

func (s SecretBytes) String() string {
	return redacted
}

// LogValue implements slog.LogValuer.
func (s SecretBytes) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s SecretBytes) GoString() string {
	return redacted
}

// Expose returns the actual secret bytes.
func (s SecretBytes) Expose() []byte {
	return []byte(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretBytes) IsEmpty() bool {
	return len(s) == 0
}

var (
	_ slog.LogValuer = SecretString("")
	_ slog.LogValuer = SecretBytes{}
)
