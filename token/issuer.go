// Package token mints and verifies the signed access and refresh tokens
// that back sessions. There are four signing contexts: (admin|user) x
// (access|refresh); the secret is namespace-specific and the expiry is
// kind-specific. Signing and verification are pure operations.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sablehq/go-session-server/principal"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Kind selects a token lifetime within a namespace.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. Callers branch differently: expired means the
// client may attempt a refresh, invalid is a hard failure.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the payload carried by both token kinds.
type Claims struct {
	PrincipalID string `json:"principalId"`
	Email       string `json:"principalEmail"`
	jwtlib.RegisteredClaims
}

// Issuer signs and verifies tokens for both principal namespaces.
type Issuer struct {
	secrets map[principal.Class][]byte
	ttls    map[Kind]time.Duration
}

func NewIssuer(adminSecret, userSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if adminSecret == "" || userSecret == "" {
		return nil, errors.New("[NewIssuer] signing secrets are required for both namespaces")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("[NewIssuer] token lifetimes must be positive")
	}
	return &Issuer{
		secrets: map[principal.Class][]byte{
			principal.ClassAdmin: []byte(adminSecret),
			principal.ClassUser:  []byte(userSecret),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  accessTTL,
			KindRefresh: refreshTTL,
		},
	}, nil
}

// TTL returns the configured lifetime for a token kind.
func (i *Issuer) TTL(kind Kind) time.Duration {
	return i.ttls[kind]
}

// Sign mints a token of the given kind for a principal.
func (i *Issuer) Sign(class principal.Class, kind Kind, principalID, email string) (string, error) {
	secret, ok := i.secrets[class]
	if !ok {
		return "", fmt.Errorf("[Sign] unknown principal class %q", class)
	}

	now := NowTimeFunc()
	claims := Claims{
		PrincipalID: principalID,
		Email:       email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttls[kind])),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a token against the namespace secret. It
// returns ErrTokenExpired for a well-signed but stale token and wraps any
// other failure in ErrTokenInvalid.
func (i *Issuer) Verify(class principal.Class, tokenStr string) (*Claims, error) {
	secret, ok := i.secrets[class]
	if !ok {
		return nil, fmt.Errorf("%w: unknown principal class %q", ErrTokenInvalid, class)
	}

	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.PrincipalID == "" {
		return nil, fmt.Errorf("%w: missing principal id claim", ErrTokenInvalid)
	}
	return claims, nil
}
