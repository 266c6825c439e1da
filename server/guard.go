package server

import (
	"context"
	"net/http"

	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyPrincipal stores the authenticated principal
const ContextKeyPrincipal ContextKey = "principal"

// RequireAuth validates the access-token cookie for the given class and
// injects the sanitized principal into the request context. When the
// access token has gone stale and no refresh token is present, both
// cookies are cleared so the client starts from a clean slate.
func (s *Server) RequireAuth(class principal.Class) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			accessToken := cookieValue(r, session.AccessCookieName(class))
			refreshToken := cookieValue(r, session.RefreshCookieName(class))

			p, err := s.sessions.Authenticate(r.Context(), class, accessToken, refreshToken)
			if err != nil {
				if refreshToken == "" {
					s.cookies.ClearPair(w, class)
				}
				s.respondError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, p)
			next(w, r.WithContext(ctx))
		}
	}
}

// PrincipalFromContext returns the principal injected by RequireAuth.
func PrincipalFromContext(ctx context.Context) (*principal.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*principal.Principal)
	return p, ok
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
