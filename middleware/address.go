package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientAddress returns the first X-Forwarded-For entry when trustProxy is
// set and the header is present, otherwise the host part of RemoteAddr.
func ClientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr := strings.TrimSpace(first); addr != "" {
				return addr
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
