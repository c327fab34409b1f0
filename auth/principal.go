package auth

import (
	"context"
	"net/http"
)

type principalKey struct{}

// AuthSurfacePaths are the pages where a stale identity must never be shown:
// while a user is mid-login-flow, the resolver reports anonymous regardless
// of any cookie still present on the request.
var AuthSurfacePaths = []string{"/login", "/register", "/forgot-password"}

// WithPrincipal binds a resolved principal to the context for the remainder
// of one request. The binding is never shared across requests.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal bound by the authentication
// middleware, if any. Anonymous requests report false, never an error.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// IsAuthSurface reports whether the path belongs to the login/registration/
// forgot-password surface.
func IsAuthSurface(path string) bool {
	for _, s := range AuthSurfacePaths {
		if path == s {
			return true
		}
	}
	return false
}

// CurrentPrincipal is the read-only projection handlers and views use. It
// returns false for anonymous requests and short-circuits to false on the
// auth surface without consulting the context.
func CurrentPrincipal(r *http.Request) (Principal, bool) {
	if r == nil {
		return Principal{}, false
	}
	if IsAuthSurface(r.URL.Path) {
		return Principal{}, false
	}
	return PrincipalFromContext(r.Context())
}
