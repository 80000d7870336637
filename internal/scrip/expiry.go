package scrip

import (
	"strings"
	"time"
)

// Scrip masters encode expiry either as ISO dates or the compact broker
// form, e.g. "2025-09-23" or "23SEP2025".
const (
	expiryLayoutISO     = "2006-01-02"
	expiryLayoutCompact = "02Jan2006"
)

// parseExpiry normalizes both known expiry encodings. Unparsable or empty
// strings report false and must sort last in tie-breaks.
func parseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(expiryLayoutISO, s); err == nil {
		return t, true
	}

	if len(s) == len("02JAN2006") {
		normalized := s[:2] + strings.ToUpper(s[2:3]) + strings.ToLower(s[3:5]) + s[5:]
		if t, err := time.Parse(expiryLayoutCompact, normalized); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
