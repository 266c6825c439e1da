package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sablehq/go-session-server/internal/apperr"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/session"
)

type createAdminRequest struct {
	AdminEmail string `json:"adminEmail"`
	Pin        string `json:"pin"`
	AdminRole  string `json:"adminRole"`
	AdminName  string `json:"adminName"`
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	DOB         string `json:"dob"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginAdminRequest struct {
	AdminEmail string `json:"adminEmail"`
	Pin        string `json:"pin"`
}

type loginUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// principalDataKey is the envelope data key per namespace ("admin" or
// "user"), matching the class name.
func principalDataKey(class principal.Class) string {
	return string(class)
}

func (s *Server) CreateHandler(class principal.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.decodeCreateRequest(r, class)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		if _, err := s.principals.GetByEmail(r.Context(), class, p.Email); err == nil {
			s.respondError(w, r, apperr.Validation("Email address is already registered"))
			return
		} else if !errors.Is(err, principal.ErrNotFound) {
			s.respondError(w, r, err)
			return
		}

		if err := s.principals.Create(r.Context(), p); err != nil {
			if errors.Is(err, principal.ErrDuplicate) {
				s.respondError(w, r, apperr.Validation("Email address is already registered"))
				return
			}
			s.respondError(w, r, apperr.Validation(fmt.Sprintf("Failed to create %s account", class)))
			return
		}

		s.respondSuccess(w, http.StatusOK,
			fmt.Sprintf("%s account created successfully", accountLabel(class)),
			map[string]any{principalDataKey(class): p.Sanitized()})
	}
}

func (s *Server) LoginHandler(class principal.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, secret, err := decodeLoginRequest(r, class)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		if !s.loginLimiter.Allow(string(class) + ":" + email) {
			s.respondError(w, r, apperr.Forbidden("Too many login attempts, try again later"))
			return
		}

		p, err := s.principals.GetByEmail(r.Context(), class, email)
		if err != nil {
			if errors.Is(err, principal.ErrNotFound) {
				s.respondError(w, r, apperr.Validation("Invalid credentials"))
				return
			}
			s.respondError(w, r, err)
			return
		}
		if class == principal.ClassUser && p.SocialAuth {
			s.respondError(w, r, apperr.Validation("Sign with your social account"))
			return
		}
		if !principal.CheckSecretHash(secret, p.SecretHash) {
			s.respondError(w, r, apperr.Validation("Invalid credentials"))
			return
		}

		pair, err := s.sessions.Establish(r.Context(), p, requestMetadata(r))
		if err != nil {
			s.respondError(w, r, apperr.Unauthorized("Authentication failed"))
			return
		}

		s.cookies.SetPair(w, class, pair)
		s.respondSuccess(w, http.StatusOK, "Login successful",
			map[string]any{principalDataKey(class): p.Sanitized()})
	}
}

func (s *Server) LogoutHandler(class principal.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refreshToken := cookieValue(r, session.RefreshCookieName(class)); refreshToken != "" {
			if err := s.sessions.Logout(r.Context(), refreshToken); err != nil {
				s.respondError(w, r, apperr.Unauthorized("Logout failed"))
				return
			}
		}

		s.cookies.ClearPair(w, class)
		s.respondSuccess(w, http.StatusOK, "Logged out successfully", nil)
	}
}

func (s *Server) RefreshHandler(class principal.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := cookieValue(r, session.RefreshCookieName(class))

		p, pair, err := s.sessions.Rotate(r.Context(), class, refreshToken, requestMetadata(r))
		if err != nil {
			// A rejected rotation ends the session; stale cookies would
			// only replay the same failure.
			s.cookies.ClearPair(w, class)
			s.respondError(w, r, err)
			return
		}

		s.cookies.SetPair(w, class, pair)
		s.respondSuccess(w, http.StatusOK, "Tokens refreshed successfully",
			map[string]any{principalDataKey(class): p})
	}
}

func (s *Server) decodeCreateRequest(r *http.Request, class principal.Class) (*principal.Principal, error) {
	switch class {
	case principal.ClassAdmin:
		var req createAdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, apperr.Validation("Invalid request body")
		}
		return buildPrincipal(class, req.AdminEmail, req.Pin, &principal.Principal{
			Username: req.AdminName,
			FullName: req.AdminName,
			Role:     req.AdminRole,
		})
	case principal.ClassUser:
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, apperr.Validation("Invalid request body")
		}
		p := &principal.Principal{
			Username:    req.Username,
			FullName:    req.FullName,
			PhoneNumber: req.PhoneNumber,
		}
		if req.DOB != "" {
			dob, err := time.Parse("2006-01-02", req.DOB)
			if err != nil {
				return nil, apperr.Validation("Invalid date of birth, expected YYYY-MM-DD")
			}
			p.DOB = dob
		}
		return buildPrincipal(class, req.Email, req.Password, p)
	default:
		return nil, apperr.Validation("Unknown principal class")
	}
}

func buildPrincipal(class principal.Class, email, secret string, p *principal.Principal) (*principal.Principal, error) {
	if err := principal.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := principal.ValidateSecretStrength(secret); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	hash, err := principal.HashSecret(secret)
	if err != nil {
		return nil, apperr.Internal("failed to hash credentials", err)
	}

	p.Class = class
	p.Email = email
	p.SecretHash = hash
	return p, nil
}

func decodeLoginRequest(r *http.Request, class principal.Class) (email, secret string, err error) {
	switch class {
	case principal.ClassAdmin:
		var req loginAdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", apperr.Validation("Invalid request body")
		}
		return req.AdminEmail, req.Pin, nil
	case principal.ClassUser:
		var req loginUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", apperr.Validation("Invalid request body")
		}
		return req.Email, req.Password, nil
	default:
		return "", "", apperr.Validation("Unknown principal class")
	}
}

func accountLabel(class principal.Class) string {
	if class == principal.ClassAdmin {
		return "Admin"
	}
	return "User"
}
