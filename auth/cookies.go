package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Canonical cookie names. tokenAuth carries the signed credential;
// usernameAuth is a display-only companion for server-rendered pages and
// carries no trust weight whatsoever.
const (
	TokenCookieName    = "tokenAuth"
	UsernameCookieName = "usernameAuth"
	cookiePath         = "/"
)

// CookieManager issues and clears the session cookie pair. It is stateless;
// clearing is advisory only, since a token already handed out stays valid
// until its natural expiry if replayed.
type CookieManager struct {
	codec  TokenCodec
	ttl    time.Duration
	secure bool
}

// CookieOption customizes a CookieManager.
type CookieOption func(*CookieManager)

// WithSessionTTL sets the cookie Max-Age and the issued token lifetime.
func WithSessionTTL(d time.Duration) CookieOption {
	return func(m *CookieManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithSecureCookies marks both cookies Secure. Off by default to match the
// deployed configuration; turn it on behind TLS.
func WithSecureCookies(secure bool) CookieOption {
	return func(m *CookieManager) { m.secure = secure }
}

func NewCookieManager(codec TokenCodec, opts ...CookieOption) (*CookieManager, error) {
	if codec == nil {
		return nil, errors.New("auth: cookie manager requires a token codec")
	}
	m := &CookieManager{codec: codec, ttl: DefaultTokenTTL}
	if hc, ok := codec.(*HMACTokenCodec); ok {
		m.ttl = hc.TTL()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// IssueSession mints a token for the principal and sets the cookie pair on
// the response. Returns the raw token. A cancelled context issues nothing
// and writes no cookies.
func (m *CookieManager) IssueSession(ctx context.Context, w http.ResponseWriter, p Principal) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	raw, err := m.codec.Issue(ctx, Claims{UserID: p.ID, Role: p.Role}, m.ttl)
	if err != nil {
		return "", err
	}

	maxAge := int(m.ttl / time.Second)
	http.SetCookie(w, m.cookie(TokenCookieName, raw, maxAge))
	http.SetCookie(w, m.cookie(UsernameCookieName, p.Username, maxAge))
	return raw, nil
}

// ClearSession overwrites both cookies with an empty value and Max-Age=0 so
// the client drops them on the next round-trip. Clearing an already-cleared
// session is a no-op.
func (m *CookieManager) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(TokenCookieName, "", -1))
	http.SetCookie(w, m.cookie(UsernameCookieName, "", -1))
}

func (m *CookieManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
	}
}
