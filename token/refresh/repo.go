package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/sablehq/go-session-server/principal"
)

var ErrNotFound = errors.New("refresh token not found")

// Repo manages server-side storage of refresh-token records.
type Repo interface {
	// Create inserts a new record (rotation path: the superseded record
	// stays behind, revoked).
	Create(ctx context.Context, rec *Record) error

	// Upsert establishes a session for a device: any record with the same
	// (class, principal, user agent) device key is replaced in place,
	// bounding concurrent sessions per device to one.
	Upsert(ctx context.Context, rec *Record) error

	// FindActive returns the unrevoked record matching the exact token
	// string for the principal, or ErrNotFound. Expiry is not filtered
	// here; the caller decides how an expired record fails.
	FindActive(ctx context.Context, class principal.Class, principalID, tokenStr string) (*Record, error)

	// FindByDevice returns the record for a (principal, user agent) pair,
	// or ErrNotFound.
	FindByDevice(ctx context.Context, class principal.Class, principalID, userAgent string) (*Record, error)

	// Revoke flips the record's revocation flag, keeping the audit trail.
	Revoke(ctx context.Context, id string) error

	// DeleteByToken removes the record matching the token string (logout).
	DeleteByToken(ctx context.Context, tokenStr string) error

	// DeleteExpired removes records whose lifetime has passed; called by
	// an external janitor, not by the session core.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
