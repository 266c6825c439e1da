package session

import (
	"net/http"
	"time"

	"github.com/sablehq/go-session-server/principal"
)

// Cookie names per principal namespace.
const (
	AdminAccessCookie  = "ADMIN_ACCESS_TOKEN"
	AdminRefreshCookie = "ADMIN_REFRESH_TOKEN"
	UserAccessCookie   = "USER_ACCESS_TOKEN"
	UserRefreshCookie  = "USER_REFRESH_TOKEN"

	// StateCookie holds the single-use OAuth anti-forgery value.
	StateCookie = "OAUTH_STATE"

	stateCookieTTL = 10 * time.Minute
)

func AccessCookieName(class principal.Class) string {
	if class == principal.ClassAdmin {
		return AdminAccessCookie
	}
	return UserAccessCookie
}

func RefreshCookieName(class principal.Class) string {
	if class == principal.ClassAdmin {
		return AdminRefreshCookie
	}
	return UserRefreshCookie
}

// CookieWriter writes and clears the session cookie pair. All cookies are
// HttpOnly, SameSite=Lax, path-scoped to /, and Secure in production; the
// max-age always matches the corresponding token lifetime.
type CookieWriter struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieWriter(secure bool, accessTTL, refreshTTL time.Duration) *CookieWriter {
	return &CookieWriter{secure: secure, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (cw *CookieWriter) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cw.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// SetPair writes both session cookies for a namespace.
func (cw *CookieWriter) SetPair(w http.ResponseWriter, class principal.Class, pair TokenPair) {
	cw.set(w, AccessCookieName(class), pair.Access, int(cw.accessTTL.Seconds()))
	cw.set(w, RefreshCookieName(class), pair.Refresh, int(cw.refreshTTL.Seconds()))
}

// ClearPair removes both session cookies for a namespace.
func (cw *CookieWriter) ClearPair(w http.ResponseWriter, class principal.Class) {
	cw.set(w, AccessCookieName(class), "", -1)
	cw.set(w, RefreshCookieName(class), "", -1)
}

// SetState writes the short-lived OAuth state cookie.
func (cw *CookieWriter) SetState(w http.ResponseWriter, state string) {
	cw.set(w, StateCookie, state, int(stateCookieTTL.Seconds()))
}

// ClearState consumes the OAuth state cookie.
func (cw *CookieWriter) ClearState(w http.ResponseWriter) {
	cw.set(w, StateCookie, "", -1)
}
