// Package server exposes the session core over HTTP: the mirrored
// admin/user auth routes, the Google bridge routes, the auth guard
// middleware, and the single error boundary that maps the failure
// taxonomy onto the response envelope.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sablehq/go-session-server/internal/config"
	"github.com/sablehq/go-session-server/internal/ratelimit"
	"github.com/sablehq/go-session-server/principal"
	"github.com/sablehq/go-session-server/session"
	"github.com/sablehq/go-session-server/social"
)

const (
	loginAttemptLimit  = 10
	loginAttemptWindow = 15 * time.Minute
	loginLimiterKeys   = 50_000
)

type Server struct {
	env          string // "development" or "production"
	mux          *http.ServeMux
	routes       []string
	config       *config.Config
	sessions     *session.Service
	principals   principal.Repo
	cookies      *session.CookieWriter
	google       *social.Bridge
	loginLimiter *ratelimit.Limiter
}

// New wires the HTTP surface. The google bridge may be nil; the social
// routes then answer with a validation failure instead of panicking.
func New(cfg *config.Config, sessions *session.Service, principals principal.Repo, google *social.Bridge) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("[Server New] session service is required")
	}
	if principals == nil {
		return nil, fmt.Errorf("[Server New] principal repo is required")
	}

	s := &Server{
		env:          cfg.App.Env,
		mux:          http.NewServeMux(),
		config:       cfg,
		sessions:     sessions,
		principals:   principals,
		cookies:      session.NewCookieWriter(cfg.IsProduction(), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		google:       google,
		loginLimiter: ratelimit.New(loginAttemptLimit, loginAttemptWindow, loginLimiterKeys),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env == config.EnvProduction {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
