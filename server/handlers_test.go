package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sablehq/go-session-server/internal/config"
	"github.com/sablehq/go-session-server/principal"
	fakeprincipalrepo "github.com/sablehq/go-session-server/principal/repofake"
	"github.com/sablehq/go-session-server/server"
	"github.com/sablehq/go-session-server/session"
	"github.com/sablehq/go-session-server/social"
	"github.com/sablehq/go-session-server/token"
	refreshrepofake "github.com/sablehq/go-session-server/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 14 * 24 * time.Hour
)

type fixture struct {
	principals *fakeprincipalrepo.FakePrincipalRepo
	tokens     *refreshrepofake.FakeRefreshTokenRepo
	srv        *server.Server
}

func newFixture(t *testing.T, google *social.Bridge) *fixture {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "session-server", Env: config.EnvProduction, Port: "3002"},
		Auth: config.AuthConfig{
			AdminSecret: "admin-secret-admin-secret",
			UserSecret:  "user-secret-user-secret",
			AccessTTL:   testAccessTTL,
			RefreshTTL:  testRefreshTTL,
		},
	}

	issuer, err := token.NewIssuer(cfg.Auth.AdminSecret, cfg.Auth.UserSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	require.NoError(t, err)

	principals := fakeprincipalrepo.NewFakePrincipalRepo()
	tokens := refreshrepofake.NewFakeRefreshTokenRepo()
	sessions, err := session.NewService(session.Repos{Principals: principals, Tokens: tokens}, issuer)
	require.NoError(t, err)

	srv, err := server.New(cfg, sessions, principals, google)
	require.NoError(t, err)

	return &fixture{principals: principals, tokens: tokens, srv: srv}
}

type responseEnvelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
	Error   *struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		ShouldRefresh bool   `json:"shouldRefresh"`
	} `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", "go-test-agent/1.0")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var env responseEnvelope
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *fixture) createUser(t *testing.T, email string) {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, server.RouteUserCreate,
		`{"username":"pat","password":"Sup3rSecret","email":"`+email+`","fullName":"Pat Doe"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.Equal(t, "User account created successfully", env.Message)
}

func (f *fixture) loginUser(t *testing.T, email string) []*http.Cookie {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, server.RouteUserLogin,
		`{"email":"`+email+`","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.Equal(t, "Login successful", env.Message)
	return rec.Result().Cookies()
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsCookiePairWithLifetimes(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")
	cookies := f.loginUser(t, "pat@example.com")

	access := cookieByName(cookies, session.AccessCookieName(principal.ClassUser))
	require.NotNil(t, access)
	require.NotEmpty(t, access.Value)
	require.Equal(t, 900, access.MaxAge)
	require.True(t, access.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Equal(t, "/", access.Path)

	refreshCookie := cookieByName(cookies, session.RefreshCookieName(principal.ClassUser))
	require.NotNil(t, refreshCookie)
	require.NotEmpty(t, refreshCookie.Value)
	require.Equal(t, 1209600, refreshCookie.MaxAge)
}

func TestAdminCreateAndLogin(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, server.RouteAdminCreate,
		`{"adminEmail":"root@example.com","pin":"Sup3rSecret","adminRole":"superadmin","adminName":"Root"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Admin account created successfully", env.Message)
	require.Contains(t, env.Data, "admin")

	rec, env = f.do(t, http.MethodPost, server.RouteAdminLogin,
		`{"adminEmail":"root@example.com","pin":"Sup3rSecret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	cookies := rec.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, session.AccessCookieName(principal.ClassAdmin)))
	require.NotNil(t, cookieByName(cookies, session.RefreshCookieName(principal.ClassAdmin)))

	var admin principal.Principal
	require.NoError(t, json.Unmarshal(env.Data["admin"], &admin))
	require.Equal(t, "root@example.com", admin.Email)
	require.Equal(t, "superadmin", admin.Role)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")

	rec, env := f.do(t, http.MethodPost, server.RouteUserCreate,
		`{"username":"pat2","password":"Sup3rSecret","email":"pat@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Equal(t, "Email address is already registered", env.Error.Message)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")

	rec, env := f.do(t, http.MethodPost, server.RouteUserLogin,
		`{"email":"pat@example.com","password":"WrongSecret1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid credentials", env.Error.Message)
}

func TestLoginThrottledAfterRepeatedAttempts(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")

	for i := 0; i < 10; i++ {
		rec, _ := f.do(t, http.MethodPost, server.RouteUserLogin,
			`{"email":"pat@example.com","password":"WrongSecret1"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec, env := f.do(t, http.MethodPost, server.RouteUserLogin,
		`{"email":"pat@example.com","password":"Sup3rSecret"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestRefreshRotatesThePair(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")
	cookies := f.loginUser(t, "pat@example.com")
	oldRefresh := cookieByName(cookies, session.RefreshCookieName(principal.ClassUser))

	rec, env := f.do(t, http.MethodGet, server.RouteUserRefresh, "", oldRefresh)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Tokens refreshed successfully", env.Message)

	rotated := rec.Result().Cookies()
	newRefresh := cookieByName(rotated, session.RefreshCookieName(principal.ClassUser))
	require.NotNil(t, newRefresh)
	require.NotEmpty(t, newRefresh.Value)
	require.NotEqual(t, oldRefresh.Value, newRefresh.Value)
	require.NotNil(t, cookieByName(rotated, session.AccessCookieName(principal.ClassUser)))
}

func TestRefreshWithRotatedTokenFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")
	cookies := f.loginUser(t, "pat@example.com")
	oldRefresh := cookieByName(cookies, session.RefreshCookieName(principal.ClassUser))

	rec, _ := f.do(t, http.MethodGet, server.RouteUserRefresh, "", oldRefresh)
	require.Equal(t, http.StatusOK, rec.Code)

	// Replaying the superseded token must end the session, not mint
	// another pair.
	rec, env := f.do(t, http.MethodGet, server.RouteUserRefresh, "", oldRefresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_REFRESH_ERROR", env.Error.Code)
	require.False(t, env.Error.ShouldRefresh)

	cleared := rec.Result().Cookies()
	access := cookieByName(cleared, session.AccessCookieName(principal.ClassUser))
	require.NotNil(t, access)
	require.Empty(t, access.Value)
	require.Less(t, access.MaxAge, 0)
}

func TestRefreshWithExpiredRecordSignalsTokenExpired(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")
	cookies := f.loginUser(t, "pat@example.com")
	refreshCookie := cookieByName(cookies, session.RefreshCookieName(principal.ClassUser))

	ctx := context.Background()
	p, err := f.principals.GetByEmail(ctx, principal.ClassUser, "pat@example.com")
	require.NoError(t, err)

	// Shrink the stored record's lifetime so the JWT stays valid while
	// the server-side record has lapsed.
	stored, err := f.tokens.FindActive(ctx, principal.ClassUser, p.ID, refreshCookie.Value)
	require.NoError(t, err)
	expired := *stored
	expired.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, f.tokens.DeleteByToken(ctx, refreshCookie.Value))
	require.NoError(t, f.tokens.Create(ctx, &expired))

	rec, env := f.do(t, http.MethodGet, server.RouteUserRefresh, "", refreshCookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_EXPIRED", env.Error.Code)
	require.True(t, env.Error.ShouldRefresh)

	revoked, ok := f.tokens.Get(expired.ID)
	require.True(t, ok)
	require.True(t, revoked.IsRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, "pat@example.com")
	cookies := f.loginUser(t, "pat@example.com")
	refreshCookie := cookieByName(cookies, session.RefreshCookieName(principal.ClassUser))

	rec, env := f.do(t, http.MethodGet, server.RouteUserLogout, "", refreshCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logged out successfully", env.Message)

	rec, env = f.do(t, http.MethodGet, server.RouteUserLogout, "", refreshCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
}

func TestGuardRejectsAnonymousRequest(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, server.RouteUserGoogleLogout, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

// fakeProvider stands in for the Google token, user-info, and revoke
// endpoints so the bridge routes run against a local server.
type fakeProvider struct {
	srv         *httptest.Server
	tokenCalls  int
	revokeCalls int
	email       string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{email: "ada@example.com"}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "google-sub-1",
			"email":          fp.email,
			"email_verified": true,
			"name":           "Ada Lovelace",
			"picture":        "https://example.com/ada.png",
		})
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		fp.revokeCalls++
		w.WriteHeader(http.StatusOK)
	})

	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakeProvider) bridge(t *testing.T) *social.Bridge {
	t.Helper()
	b, err := social.NewBridge(context.Background(), social.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3002" + server.RouteUserGoogleCallback,
		AuthURL:      fp.srv.URL + "/auth",
		TokenURL:     fp.srv.URL + "/token",
		UserInfoURL:  fp.srv.URL + "/userinfo",
		RevokeURL:    fp.srv.URL + "/revoke",
	})
	require.NoError(t, err)
	return b
}

func TestGoogleSignInRedirectsWithStateCookie(t *testing.T) {
	fp := newFakeProvider(t)
	f := newFixture(t, fp.bridge(t))

	rec, _ := f.do(t, http.MethodGet, server.RouteUserGoogleSignIn, "")
	require.Equal(t, http.StatusFound, rec.Code)

	state := cookieByName(rec.Result().Cookies(), session.StateCookie)
	require.NotNil(t, state)
	require.NotEmpty(t, state.Value)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestGoogleCallbackRejectsStateMismatchBeforeExchange(t *testing.T) {
	fp := newFakeProvider(t)
	f := newFixture(t, fp.bridge(t))

	stateCookie := &http.Cookie{Name: session.StateCookie, Value: "expected-state"}
	rec, env := f.do(t, http.MethodGet,
		server.RouteUserGoogleCallback+"?state=forged-state&code=auth-code", "", stateCookie)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
	require.Equal(t, 0, fp.tokenCalls)
}

func TestGoogleCallbackEstablishesSession(t *testing.T) {
	fp := newFakeProvider(t)
	f := newFixture(t, fp.bridge(t))

	stateCookie := &http.Cookie{Name: session.StateCookie, Value: "expected-state"}
	rec, env := f.do(t, http.MethodGet,
		server.RouteUserGoogleCallback+"?state=expected-state&code=auth-code", "", stateCookie)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Google account logged in", env.Message)
	require.Equal(t, 1, fp.tokenCalls)

	cookies := rec.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, session.AccessCookieName(principal.ClassUser)))
	require.NotNil(t, cookieByName(cookies, session.RefreshCookieName(principal.ClassUser)))

	p, err := f.principals.GetByEmail(context.Background(), principal.ClassUser, "ada@example.com")
	require.NoError(t, err)
	require.True(t, p.SocialAuth)
	require.Equal(t, principal.SocialTypeGoogle, p.SocialType)
	require.Equal(t, "ada", p.Username)
}

func TestGoogleCallbackRejectsPasswordAccount(t *testing.T) {
	fp := newFakeProvider(t)
	f := newFixture(t, fp.bridge(t))
	fp.email = "pat@example.com"
	f.createUser(t, "pat@example.com")

	stateCookie := &http.Cookie{Name: session.StateCookie, Value: "expected-state"}
	rec, env := f.do(t, http.MethodGet,
		server.RouteUserGoogleCallback+"?state=expected-state&code=auth-code", "", stateCookie)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestGoogleLogoutRevokesUpstreamAndClearsSession(t *testing.T) {
	fp := newFakeProvider(t)
	f := newFixture(t, fp.bridge(t))

	stateCookie := &http.Cookie{Name: session.StateCookie, Value: "expected-state"}
	rec, _ := f.do(t, http.MethodGet,
		server.RouteUserGoogleCallback+"?state=expected-state&code=auth-code", "", stateCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	sessionCookies := rec.Result().Cookies()
	access := cookieByName(sessionCookies, session.AccessCookieName(principal.ClassUser))
	refreshCookie := cookieByName(sessionCookies, session.RefreshCookieName(principal.ClassUser))

	rec, env := f.do(t, http.MethodGet, server.RouteUserGoogleLogout, "", access, refreshCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Google account logout", env.Message)
	require.Equal(t, 1, fp.revokeCalls)

	cleared := cookieByName(rec.Result().Cookies(), session.RefreshCookieName(principal.ClassUser))
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
}
