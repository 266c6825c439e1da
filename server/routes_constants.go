package server

// Auth routes, mirrored per principal namespace.
const (
	RouteAdminCreate  = "/admin/auth/createAdmin"
	RouteAdminLogin   = "/admin/auth/loginAdmin"
	RouteAdminLogout  = "/admin/auth/logout"
	RouteAdminRefresh = "/admin/auth/refresh"

	RouteUserCreate  = "/user/auth/createUser"
	RouteUserLogin   = "/user/auth/loginUser"
	RouteUserLogout  = "/user/auth/logout"
	RouteUserRefresh = "/user/auth/refresh"

	RouteUserGoogleSignIn   = "/user/auth/signWithGoogle"
	RouteUserGoogleCallback = "/user/auth/signWithGoogle/callback"
	RouteUserGoogleLogout   = "/user/auth/google/logout"
)
