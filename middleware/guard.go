package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/jwt"
)

// ClaimsVerifier is the part of *goCred.Engine the guards depend on.
type ClaimsVerifier interface {
	Claims(token string) (*jwt.Claims, error)
}

type claimsContextKey struct{}
type tokenContextKey struct{}

// ClaimsFromContext returns the verified access-token claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return c, ok
}

// TokenFromContext returns the raw bearer token accepted by Guard.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenContextKey{}).(string)
	return t, ok && t != ""
}

// ErrorHandler writes the response for a request Guard rejects.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// GuardOption configures Guard.
type GuardOption func(*guardOptions)

type guardOptions struct {
	onError ErrorHandler
}

// WithErrorHandler replaces the default plain-text 401 response. err wraps
// goCred.ErrTokenInvalid when the header carries no bearer token, and is the
// verification error otherwise.
func WithErrorHandler(fn ErrorHandler) GuardOption {
	return func(o *guardOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

func unauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Guard rejects requests without a valid access token. On success the claims
// and raw token are stored in the request context.
func Guard(engine ClaimsVerifier, opts ...GuardOption) func(http.Handler) http.Handler {
	o := guardOptions{onError: unauthorized}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, goCred.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				o.onError(w, r, fmt.Errorf("%w: missing bearer token", goCred.ErrTokenInvalid))
				return
			}

			claims, err := engine.Claims(token)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Guard. It answers 403 when the token's role is
// not one of roles.
func RequireRole(roles ...goCred.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if strings.EqualFold(claims.Role, string(role)) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
