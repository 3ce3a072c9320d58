package logger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Token formats that are shortened to a hint rather than dropped, so
// log lines about the same session can still be correlated.
var tokenPrefixes = []string{"pmtk_", "pmth_"}

// Key fragments whose string values are dropped.
var secretKeys = []string{"token", "secret", "password", "authorization", "credential"}

// Keys holding relayed user content. Only the size is logged.
var contentKeys = map[string]bool{"body": true, "payload": true}

const redacted = "[REDACTED]"

// redact is the slog ReplaceAttr hook.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	v := a.Value.Resolve()

	if contentKeys[key] {
		return slog.String(a.Key, contentSize(v))
	}

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redact(nil, attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}

	case slog.KindString:
		s := v.String()
		if s == "" {
			return a
		}
		if masked, ok := maskToken(s); ok {
			return slog.String(a.Key, masked)
		}
		for _, frag := range secretKeys {
			if strings.Contains(key, frag) {
				return slog.String(a.Key, redacted)
			}
		}
	}
	return a
}

func contentSize(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return fmt.Sprintf("[%d bytes]", len(v.String()))
	case slog.KindAny:
		switch b := v.Any().(type) {
		case []byte:
			return fmt.Sprintf("[%d bytes]", len(b))
		case json.RawMessage:
			return fmt.Sprintf("[%d bytes]", len(b))
		}
	}
	return redacted
}

// maskToken shortens a prefixed token to its prefix and last four
// characters.
func maskToken(s string) (string, bool) {
	for _, p := range tokenPrefixes {
		if !strings.HasPrefix(s, p) {
			continue
		}
		body := s[len(p):]
		if len(body) <= 8 {
			return p + "****", true
		}
		return p + "****" + body[len(body)-4:], true
	}
	return "", false
}

// Mask hides a secret for display. Prefixed tokens keep a hint; other
// values keep their first and last two characters.
func Mask(s string) string {
	if masked, ok := maskToken(s); ok {
		return masked
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
