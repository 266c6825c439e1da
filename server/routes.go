package server

import "github.com/sablehq/go-session-server/principal"

func (s *Server) initRoutes() {
	// ADMIN namespace
	s.RegisterRouteFunc("POST "+RouteAdminCreate, ChainMiddleware(s.CreateHandler(principal.ClassAdmin), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAdminLogin, ChainMiddleware(s.LoginHandler(principal.ClassAdmin), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAdminLogout, ChainMiddleware(s.LogoutHandler(principal.ClassAdmin), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAdminRefresh, ChainMiddleware(s.RefreshHandler(principal.ClassAdmin), s.APIMiddleware()...))

	// USER namespace
	s.RegisterRouteFunc("POST "+RouteUserCreate, ChainMiddleware(s.CreateHandler(principal.ClassUser), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteUserLogin, ChainMiddleware(s.LoginHandler(principal.ClassUser), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserLogout, ChainMiddleware(s.LogoutHandler(principal.ClassUser), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserRefresh, ChainMiddleware(s.RefreshHandler(principal.ClassUser), s.APIMiddleware()...))

	// Google bridge (user namespace only)
	s.RegisterRouteFunc("GET "+RouteUserGoogleSignIn, ChainMiddleware(s.GoogleSignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserGoogleLogout, ChainMiddleware(s.GoogleLogoutHandler(), s.APIMiddleware(s.RequireAuth(principal.ClassUser))...))
}
