// Package refresh owns the persisted refresh-token records that make up
// the authoritative session state. One active record exists per
// (principal, device); rotation supersedes records rather than mutating
// the token in place.
package refresh

import (
	"regexp"
	"time"

	"github.com/sablehq/go-session-server/principal"
)

// MaxUserAgentLength bounds stored user-agent strings.
const MaxUserAgentLength = 500

var userAgentSanitizer = regexp.MustCompile(`[^a-zA-Z0-9 .:;/()\-]+`)

// Record is one device-scoped session. The token string it stores is
// opaque to everything except the token issuer. Revocation is a logical
// flag so the audit trail survives; only explicit logout and the expiry
// sweep delete rows.
type Record struct {
	ID             string
	PrincipalClass principal.Class
	PrincipalID    string
	Token          string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	IsRevoked      bool
	IPAddress      string
	UserAgent      string
}

// IsExpired reports whether the record's lifetime has passed.
func (r *Record) IsExpired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// IsActive reports whether the record can still satisfy a rotation.
func (r *Record) IsActive(now time.Time) bool {
	return !r.IsRevoked && !r.IsExpired(now)
}

// SanitizeUserAgent strips characters outside a conservative allow-list
// and caps the length before a user agent is persisted.
func SanitizeUserAgent(ua string) string {
	ua = userAgentSanitizer.ReplaceAllString(ua, "")
	if len(ua) > MaxUserAgentLength {
		ua = ua[:MaxUserAgentLength]
	}
	return ua
}
