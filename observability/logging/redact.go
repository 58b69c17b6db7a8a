package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys that stabled logs verbatim. Everything else passed through MaskField is masked.
var plainKeys = map[string]struct{}{
	"component": {},
	"error":     {},
	"kind":      {},
	"signer":    {},
	"vault":     {},
	"commit_id": {},
	"method":    {},
	"path":      {},
	"status":    {},
	"client":    {},
}

// IsPlain reports whether values under key are logged without masking.
func IsPlain(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute whose value is masked unless key is a plain key. An
// Authorization header keeps its scheme so operators can tell Bearer from Basic.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlain(key) {
		return slog.String(key, value)
	}
	if scheme, _, ok := strings.Cut(strings.TrimSpace(value), " "); ok && strings.EqualFold(key, "authorization") {
		return slog.String(key, scheme+" "+RedactedValue)
	}
	return slog.String(key, RedactedValue)
}
