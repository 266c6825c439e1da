package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sablehq/go-session-server/internal/apperr"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/session"
	"github.com/sablehq/go-session-server/social"
)

func (s *Server) GoogleSignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			s.respondError(w, r, apperr.Validation("Google sign-in is not configured"))
			return
		}

		state, err := social.NewState()
		if err != nil {
			s.respondError(w, r, apperr.Internal("failed to generate state", err))
			return
		}

		s.cookies.SetState(w, state)
		http.Redirect(w, r, s.google.AuthCodeURL(state), http.StatusFound)
	}
}

func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			s.respondError(w, r, apperr.Validation("Google sign-in is not configured"))
			return
		}

		// The state check must reject before any code exchange; a forged
		// callback must never reach the provider.
		stateFromQuery := r.URL.Query().Get("state")
		stateFromCookie := cookieValue(r, session.StateCookie)
		if stateFromQuery == "" || stateFromCookie == "" ||
			subtle.ConstantTimeCompare([]byte(stateFromQuery), []byte(stateFromCookie)) != 1 {
			s.respondError(w, r, apperr.Unauthorized("State mismatch"))
			return
		}
		s.cookies.ClearState(w)

		tok, err := s.google.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			s.respondError(w, r, apperr.Unauthorized("Authentication failed"))
			return
		}

		profile, err := s.google.UserInfo(r.Context(), tok)
		if err != nil {
			s.respondError(w, r, apperr.Unauthorized("Authentication failed"))
			return
		}

		p, err := social.ResolvePrincipal(r.Context(), s.principals, profile, tok.AccessToken)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		pair, err := s.sessions.Establish(r.Context(), p, requestMetadata(r))
		if err != nil {
			s.respondError(w, r, apperr.Unauthorized("Authentication failed"))
			return
		}

		s.cookies.SetPair(w, principal.ClassUser, pair)
		s.respondSuccess(w, http.StatusOK, "Google account logged in",
			map[string]any{"user": p.Sanitized()})
	}
}

func (s *Server) GoogleLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			s.respondError(w, r, apperr.Unauthorized("Authentication required"))
			return
		}

		// Best effort: a failed upstream revocation must not keep the
		// local session alive.
		if s.google != nil && p.SocialToken != "" {
			if err := s.google.Revoke(r.Context(), p.SocialToken); err != nil {
				log.Warn().Err(err).Str("principal_id", p.ID).Msg("google token revocation failed")
			}
		}

		if refreshToken := cookieValue(r, session.RefreshCookieName(principal.ClassUser)); refreshToken != "" {
			if err := s.sessions.Logout(r.Context(), refreshToken); err != nil {
				s.respondError(w, r, apperr.Unauthorized("Logout failed"))
				return
			}
		}

		s.cookies.ClearPair(w, principal.ClassUser)
		s.respondSuccess(w, http.StatusOK, "Google account logout", nil)
	}
}
