package middleware

import (
	"net"
	"net/http"
	"strings"

	goCred "github.com/MrEthical07/goCred"
	"github.com/google/uuid"
)

// RequestIDHeader is read from, and echoed to, every request.
const RequestIDHeader = "X-Request-ID"

// RequestContext attaches a request ID and the client IP to the request
// context so that Engine audit events and per-IP throttles can see them.
// When trustProxy is set the first X-Forwarded-For hop wins over RemoteAddr.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := goCred.WithRequestID(r.Context(), id)
			ctx = goCred.WithClientIP(ctx, clientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
