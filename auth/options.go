package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
)

// TokenExtractor pulls a raw token string out of a request.
type TokenExtractor func(*http.Request) (string, error)

// Skipper short-circuits authentication for a request before any cookie or
// signature work happens.
type Skipper func(*http.Request) bool

// AuthenticatorOption customizes an Authenticator.
type AuthenticatorOption func(*authenticatorConfig)

type authenticatorConfig struct {
	extractor TokenExtractor
	skipper   Skipper
}

func newAuthenticatorConfig(opts ...AuthenticatorOption) authenticatorConfig {
	cfg := authenticatorConfig{
		extractor: CookieTokenExtractor(TokenCookieName),
		skipper:   PathPrefixSkipper(DefaultSkipPrefixes...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.extractor == nil {
		cfg.extractor = CookieTokenExtractor(TokenCookieName)
	}
	if cfg.skipper == nil {
		cfg.skipper = func(*http.Request) bool { return false }
	}
	return cfg
}

// WithTokenExtractor overrides where the credential is read from.
func WithTokenExtractor(extractor TokenExtractor) AuthenticatorOption {
	return func(cfg *authenticatorConfig) {
		if extractor != nil {
			cfg.extractor = extractor
		}
	}
}

// WithSkipper overrides the allow-list predicate.
func WithSkipper(skipper Skipper) AuthenticatorOption {
	return func(cfg *authenticatorConfig) {
		if skipper != nil {
			cfg.skipper = skipper
		}
	}
}

// DefaultSkipPrefixes are the high-volume anonymous asset paths where token
// parsing is pure overhead.
var DefaultSkipPrefixes = []string{"/css/", "/js/", "/images/", "/avatar/"}

// PathPrefixSkipper skips authentication for any request whose path starts
// with one of the given prefixes.
func PathPrefixSkipper(prefixes ...string) Skipper {
	copied := append([]string(nil), prefixes...)
	return func(r *http.Request) bool {
		for _, p := range copied {
			if p != "" && strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}

// CookieTokenExtractor reads the token from a named cookie.
func CookieTokenExtractor(name string) TokenExtractor {
	name = strings.TrimSpace(name)
	return func(r *http.Request) (string, error) {
		if name == "" {
			return "", ErrTokenInvalidInput
		}
		cookie, err := r.Cookie(name)
		if err != nil {
			if errors.Is(err, http.ErrNoCookie) {
				return "", ErrTokenNotFound
			}
			return "", err
		}
		value := strings.TrimSpace(cookie.Value)
		if value == "" {
			return "", ErrTokenNotFound
		}
		return value, nil
	}
}

// BearerTokenExtractor reads the token from the Authorization header; API
// clients that do not hold cookies use it.
func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrTokenInvalidInput
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrTokenInvalidInput
		}
		return token, nil
	}
}

// ChainExtractors tries each extractor in order and returns the first token
// found.
func ChainExtractors(extractors ...TokenExtractor) TokenExtractor {
	copied := append([]TokenExtractor(nil), extractors...)
	return func(r *http.Request) (string, error) {
		var lastErr error = ErrTokenNotFound
		for _, extractor := range copied {
			if extractor == nil {
				continue
			}
			token, err := extractor(r)
			if err == nil {
				return token, nil
			}
			lastErr = err
		}
		return "", lastErr
	}
}
