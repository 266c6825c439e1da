// Package session implements the dual-principal session lifecycle: pair
// issuance on login, single-use refresh rotation, the per-request auth
// guard, and logout. Authoritative session state lives entirely in the
// refresh-token store; nothing is cached across requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sablehq/go-session-server/internal/apperr"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/token"
	"github.com/sablehq/go-session-server/token/refresh"
)

// TokenPair is one freshly minted access/refresh pair.
type TokenPair struct {
	Access  string
	Refresh string
}

// Metadata is the request context persisted alongside a refresh record.
// UserAgent doubles as the device key.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Principals principal.Repo
	Tokens     refresh.Repo
}

// Service drives session establishment, rotation, and the auth guard for
// both principal namespaces.
type Service struct {
	repos   Repos
	issuer  *token.Issuer
	nowTime func() time.Time
}

// Option modifies the Service instance.
type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repos Repos, issuer *token.Issuer, options ...Option) (*Service, error) {
	if repos.Principals == nil {
		return nil, errors.New("[NewService] Principals repo is required")
	}
	if repos.Tokens == nil {
		return nil, errors.New("[NewService] Tokens repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] issuer is required")
	}

	svc := &Service{
		repos:   repos,
		issuer:  issuer,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(svc)
	}
	return svc, nil
}

// Establish mints an access/refresh pair for a principal and persists the
// device-scoped refresh record. A prior session for the same device is
// replaced in place. Both login paths and the social bridge end here;
// cookie writes must happen only after this returns.
func (s *Service) Establish(ctx context.Context, p *principal.Principal, meta Metadata) (TokenPair, error) {
	accessToken, err := s.issuer.Sign(p.Class, token.KindAccess, p.ID, p.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.issuer.Sign(p.Class, token.KindRefresh, p.ID, p.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	now := s.nowTime()
	rec := &refresh.Record{
		ID:             uuid.New().String(),
		PrincipalClass: p.Class,
		PrincipalID:    p.ID,
		Token:          refreshToken,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.issuer.TTL(token.KindRefresh)),
		IPAddress:      meta.IPAddress,
		UserAgent:      refresh.SanitizeUserAgent(meta.UserAgent),
	}
	if err := s.repos.Tokens.Upsert(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh record: %w", err)
	}

	return TokenPair{Access: accessToken, Refresh: refreshToken}, nil
}

// Rotate consumes a refresh token exactly once: it validates the token,
// revokes the backing record, and issues a replacement pair persisted
// under a new record that inherits the original expiry window. Replay of
// an already-rotated token fails closed; two concurrent rotations of the
// same token produce one winner and one TokenRefresh failure.
func (s *Service) Rotate(ctx context.Context, class principal.Class, refreshToken string, meta Metadata) (*principal.Principal, TokenPair, error) {
	if refreshToken == "" {
		return nil, TokenPair{}, apperr.TokenRefresh("no refresh token provided", nil)
	}

	claims, err := s.issuer.Verify(class, refreshToken)
	if err != nil {
		return nil, TokenPair{}, apperr.TokenRefresh("invalid refresh token", err)
	}

	stored, err := s.repos.Tokens.FindActive(ctx, class, claims.PrincipalID, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return nil, TokenPair{}, apperr.TokenRefresh("refresh token not found or revoked", nil)
		}
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}

	now := s.nowTime()
	if stored.IsExpired(now) {
		if err := s.repos.Tokens.Revoke(ctx, stored.ID); err != nil {
			return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
		}
		return nil, TokenPair{}, apperr.TokenExpired("refresh token has expired", nil)
	}

	p, err := s.repos.Principals.GetByID(ctx, class, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, TokenPair{}, apperr.NotFound("account not found")
		}
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}

	newAccess, err := s.issuer.Sign(class, token.KindAccess, p.ID, p.Email)
	if err != nil {
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}
	newRefresh, err := s.issuer.Sign(class, token.KindRefresh, p.ID, p.Email)
	if err != nil {
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}

	// Single-use enforcement: the consumed record is revoked before its
	// replacement is persisted.
	if err := s.repos.Tokens.Revoke(ctx, stored.ID); err != nil {
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}

	rec := &refresh.Record{
		ID:             uuid.New().String(),
		PrincipalClass: class,
		PrincipalID:    p.ID,
		Token:          newRefresh,
		IssuedAt:       now,
		ExpiresAt:      stored.ExpiresAt, // rotation never extends the session ceiling
		IsRevoked:      false,
		IPAddress:      meta.IPAddress,
		UserAgent:      refresh.SanitizeUserAgent(meta.UserAgent),
	}
	if err := s.repos.Tokens.Create(ctx, rec); err != nil {
		return nil, TokenPair{}, apperr.TokenRefresh("token refresh failed", err)
	}

	return p.Sanitized(), TokenPair{Access: newAccess, Refresh: newRefresh}, nil
}

// Authenticate derives the authenticated principal from the cookie values,
// or reports a precise failure. It is evaluated fresh on every request and
// holds no cross-request memory.
func (s *Service) Authenticate(ctx context.Context, class principal.Class, accessToken, refreshToken string) (*principal.Principal, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	if accessToken != "" {
		claims, err := s.issuer.Verify(class, accessToken)
		switch {
		case err == nil:
			p, perr := s.repos.Principals.GetByID(ctx, class, claims.PrincipalID)
			if perr == nil {
				return p.Sanitized(), nil
			}
			if !errors.Is(perr, principal.ErrNotFound) {
				return nil, apperr.Internal("authentication failed", perr)
			}
		case errors.Is(err, token.ErrTokenExpired):
			// Fall through: the refresh token may still rescue the session.
		default:
			if refreshToken != "" {
				return nil, apperr.JWT("access token invalid, refresh required", err)
			}
			return nil, apperr.JWT("authentication verification failed", err)
		}
	}

	if refreshToken != "" {
		return nil, apperr.Unauthorized("access token expired, refresh required")
	}
	return nil, apperr.Unauthorized("authentication required")
}

// Logout deletes the refresh record matching the token. Missing records
// are ignored so logout stays idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repos.Tokens.DeleteByToken(ctx, refreshToken); err != nil && !errors.Is(err, refresh.ErrNotFound) {
		return fmt.Errorf("delete refresh record: %w", err)
	}
	return nil
}
