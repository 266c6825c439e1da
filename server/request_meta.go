package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/sablehq/go-session-server/session"
)

const unknownIP = "Unknown"

// clientIP resolves the caller's address behind proxies: the first hop
// of X-Forwarded-For wins, then the Cloudflare and nginx headers, then
// the socket peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return unknownIP
}

func requestMetadata(r *http.Request) session.Metadata {
	return session.Metadata{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
