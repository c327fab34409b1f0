package httpx

import (
	"net/http"

	"github.com/forumkit/forumkit/auth"
)

// LoginPath is where unauthenticated requests to protected surfaces are
// redirected.
const LoginPath = "/login"

// Authentication adapts an auth.Authenticator into an echo middleware. The
// authenticator never blocks a request by itself; it only binds a principal
// (or nothing) into the request context.
func Authentication(a *auth.Authenticator) MiddlewareFunc {
	if a == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusInternal, "authenticator missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var handlerErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				handlerErr = next(c)
			})
			a.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return handlerErr
		}
	}
}

// Authorization evaluates the policy against the request and the principal
// bound by Authentication. Anonymous denials redirect to the login surface;
// role denials return 403.
func Authorization(policy *auth.Policy) MiddlewareFunc {
	if policy == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusInternal, "authorization policy missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			r := c.Request()

			var principal *auth.Principal
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				principal = &p
			}

			switch policy.Evaluate(r.Method, r.URL.Path, principal) {
			case auth.Allow:
				return next(c)
			case auth.RedirectLogin:
				return c.Redirect(StatusFound, LoginPath)
			case auth.Forbid:
				return HTTPError(StatusForbidden, "insufficient role")
			default:
				return HTTPError(StatusInternal, "unknown authorization decision")
			}
		}
	}
}
