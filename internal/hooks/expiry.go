package hooks

import (
	"strings"
	"time"
)

// expiry layouts accepted from the oracle, tried in order. The bare
// layout has no zone and is taken as UTC.
var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseExpiry turns an oracle-provided expiry string into a concrete
// instant. "" and "null" mean no expiry. ok is false only when the value
// is present but unparseable; the caller then stores the hook without an
// expiry rather than dropping it.
func ParseExpiry(raw string) (t *time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return nil, true
	}

	for _, layout := range expiryLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			utc := parsed.UTC()
			return &utc, true
		}
	}
	return nil, false
}
