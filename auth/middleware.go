package auth

import (
	"errors"
	"net/http"
)

var ErrPrincipalNotFound = errors.New("auth: principal not found")

// Authenticator resolves a request's principal from its credential cookie.
//
// Per request the state machine has two states: unauthenticated (initial)
// and authenticated. The transition happens only when the cookie is present,
// the token verifies, and the store knows the subject. Any failure along the
// way leaves the request anonymous and the pipeline continues; authorization
// alone decides whether an anonymous request may proceed.
type Authenticator struct {
	codec     TokenCodec
	store     PrincipalStore
	extractor TokenExtractor
	skipper   Skipper
}

func NewAuthenticator(codec TokenCodec, store PrincipalStore, opts ...AuthenticatorOption) (*Authenticator, error) {
	if codec == nil {
		return nil, errors.New("auth: authenticator requires a token codec")
	}
	if store == nil {
		return nil, errors.New("auth: authenticator requires a principal store")
	}
	cfg := newAuthenticatorConfig(opts...)
	return &Authenticator{
		codec:     codec,
		store:     store,
		extractor: cfg.extractor,
		skipper:   cfg.skipper,
	}, nil
}

// Handler wraps next with authentication. The wrapped handler never writes
// to the response itself: failures degrade to anonymous, and a cancelled
// request is abandoned without side effects.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	if a == nil {
		panic("auth: authenticator is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		p, ok := a.resolve(r)
		if !ok {
			if r.Context().Err() != nil {
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Resolve runs the full cookie→token→store chain for a single request and
// reports whether it produced a principal. Exposed for transports that are
// not plain http.Handler chains.
func (a *Authenticator) Resolve(r *http.Request) (Principal, bool) {
	if a == nil || r == nil {
		return Principal{}, false
	}
	if a.skipper(r) {
		return Principal{}, false
	}
	return a.resolve(r)
}

func (a *Authenticator) resolve(r *http.Request) (Principal, bool) {
	raw, err := a.extractor(r)
	if err != nil || raw == "" {
		return Principal{}, false
	}

	claims, err := a.codec.Verify(r.Context(), raw)
	if err != nil {
		return Principal{}, false
	}

	p, err := a.store.FindByID(r.Context(), claims.UserID)
	if err != nil {
		return Principal{}, false
	}
	return p, true
}
