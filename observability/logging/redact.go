package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskValue returns the canonical redacted placeholder for non-empty
// values. Empty values are returned unchanged so absent credentials do
// not look configured.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr carrying the redacted placeholder in
// place of the supplied value.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
