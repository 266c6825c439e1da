// Package social drives the Google authorization-code handshake and folds
// provider identities into local principal records. The anti-forgery state
// value lives in a short-lived single-use cookie and is compared before the
// token endpoint is ever contacted.
package social

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sablehq/go-session-server/internal/apperr"
	"github.com/sablehq/go-session-server/principal"
	"golang.org/x/oauth2"
)

// Google endpoints; overridable through Config for tests.
const (
	googleIssuerURL   = "https://accounts.google.com"
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"

	stateLength = 32
)

// Profile is the provider identity used to resolve a local principal.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides for tests. Empty fields fall back to Google.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	RevokeURL   string
}

// Bridge wraps the oauth2 exchange and the provider's user-info and revoke
// endpoints for one OAuth client registration.
type Bridge struct {
	oauth     *oauth2.Config
	provider  *oidc.Provider
	revokeURL string
	client    *http.Client
}

func NewBridge(ctx context.Context, cfg Config) (*Bridge, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("[NewBridge] client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("[NewBridge] redirect URL is required")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = googleAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = googleRevokeURL
	}

	provider := (&oidc.ProviderConfig{
		IssuerURL:   googleIssuerURL,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	}).NewProvider(ctx)

	return &Bridge{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		provider:  provider,
		revokeURL: revokeURL,
		client:    http.DefaultClient,
	}, nil
}

// NewState generates the single-use anti-forgery value bound to one
// authorization redirect.
func NewState() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthCodeURL builds the provider authorization URL carrying the state.
func (b *Bridge) AuthCodeURL(state string) string {
	return b.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for a provider token.
func (b *Bridge) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange: %w", err)
	}
	return tok, nil
}

// UserInfo fetches the provider's user-info endpoint. Any non-success
// response is a hard failure.
func (b *Bridge) UserInfo(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	info, err := b.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode user info claims: %w", err)
	}

	return &Profile{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// Revoke invalidates a provider access token upstream.
func (b *Bridge) Revoke(ctx context.Context, providerToken string) error {
	form := url.Values{"token": {providerToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke provider token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revoke provider token: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ResolvePrincipal maps a provider profile onto a local principal.
// Existence is checked before any field is read. An account registered by
// password can never complete social login; a missing account is created
// social-originated with no local password.
func ResolvePrincipal(ctx context.Context, repo principal.Repo, profile *Profile, providerToken string) (*principal.Principal, error) {
	if profile.Email == "" {
		return nil, apperr.Validation("provider profile has no email address")
	}

	p, err := repo.GetByEmail(ctx, principal.ClassUser, profile.Email)
	switch {
	case err == nil:
		if p.HasPassword() {
			return nil, apperr.Validation("use the other method to sign in")
		}
		return p, nil

	case errors.Is(err, principal.ErrNotFound):
		p = &principal.Principal{
			Class:        principal.ClassUser,
			Email:        profile.Email,
			Username:     usernameFromEmail(profile.Email),
			FullName:     profile.Name,
			SocialAuth:   true,
			SocialType:   principal.SocialTypeGoogle,
			SocialToken:  providerToken,
			ProfileImage: profile.Picture,
		}
		if err := repo.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create social principal: %w", err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("resolve principal by email: %w", err)
	}
}

func usernameFromEmail(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
