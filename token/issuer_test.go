package token_test

import (
	"testing"
	"time"

	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/token"
	"github.com/stretchr/testify/require"
)

const (
	adminSecret = "admin-signing-secret"
	userSecret  = "user-signing-secret"
)

func newIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(adminSecret, userSecret, 15*time.Minute, 14*24*time.Hour)
	require.NoError(t, err)
	return issuer
}

func withFixedNow(t *testing.T, at *time.Time) {
	t.Helper()
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return *at }
	t.Cleanup(func() { token.NowTimeFunc = prev })
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := token.NewIssuer("", userSecret, time.Minute, time.Hour)
	require.Error(t, err)

	_, err = token.NewIssuer(adminSecret, userSecret, 0, time.Hour)
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	issuer := newIssuer(t)

	for _, class := range []principal.Class{principal.ClassAdmin, principal.ClassUser} {
		signed, err := issuer.Sign(class, token.KindAccess, "p-1", "a@b.com")
		require.NoError(t, err)

		claims, err := issuer.Verify(class, signed)
		require.NoError(t, err)
		require.Equal(t, "p-1", claims.PrincipalID)
		require.Equal(t, "a@b.com", claims.Email)
	}
}

func TestVerifyRejectsCrossNamespace(t *testing.T) {
	issuer := newIssuer(t)

	signed, err := issuer.Sign(principal.ClassUser, token.KindAccess, "p-1", "a@b.com")
	require.NoError(t, err)

	_, err = issuer.Verify(principal.ClassAdmin, signed)
	require.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestVerifyDistinguishesExpiredFromInvalid(t *testing.T) {
	issuer := newIssuer(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	withFixedNow(t, &now)

	signed, err := issuer.Sign(principal.ClassUser, token.KindAccess, "p-1", "a@b.com")
	require.NoError(t, err)

	// Within the 15 minute window the token verifies.
	now = now.Add(14 * time.Minute)
	_, err = issuer.Verify(principal.ClassUser, signed)
	require.NoError(t, err)

	// Past the window it is expired, not invalid.
	now = now.Add(2 * time.Minute)
	_, err = issuer.Verify(principal.ClassUser, signed)
	require.ErrorIs(t, err, token.ErrTokenExpired)
	require.NotErrorIs(t, err, token.ErrTokenInvalid)

	// A tampered token is invalid regardless of time.
	_, err = issuer.Verify(principal.ClassUser, signed+"x")
	require.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestRefreshKindUsesLongerTTL(t *testing.T) {
	issuer := newIssuer(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	withFixedNow(t, &now)

	refreshTok, err := issuer.Sign(principal.ClassUser, token.KindRefresh, "p-1", "a@b.com")
	require.NoError(t, err)

	claims, err := issuer.Verify(principal.ClassUser, refreshTok)
	require.NoError(t, err)
	require.Equal(t, now.Add(14*24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	// Still valid well past the access window.
	now = now.Add(48 * time.Hour)
	_, err = issuer.Verify(principal.ClassUser, refreshTok)
	require.NoError(t, err)
}

func TestTTL(t *testing.T) {
	issuer := newIssuer(t)
	require.Equal(t, 15*time.Minute, issuer.TTL(token.KindAccess))
	require.Equal(t, 14*24*time.Hour, issuer.TTL(token.KindRefresh))
}
