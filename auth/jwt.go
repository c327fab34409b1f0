package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

var (
	ErrTokenMalformed      = errors.New("auth: malformed token")
	ErrTokenBadSignature   = errors.New("auth: invalid token signature")
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrTokenUnsupportedAlg = errors.New("auth: unsupported signing algorithm")
	ErrInvalidClaims       = errors.New("auth: invalid token claims")
	ErrMissingSecret       = errors.New("auth: missing signing secret")
	ErrWeakSecret          = errors.New("auth: signing secret too short")
)

// MinSecretLength is the minimum secret length accepted for HMAC signing.
const MinSecretLength = 32

// DefaultTokenTTL is used when Issue is called without an explicit TTL and
// the codec was built without one.
const DefaultTokenTTL = 24 * time.Hour

type jwtHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// jwtPayload is the wire shape of the credential. The subject identifier is
// carried under "id" rather than "sub"; the forum clients depend on it.
type jwtPayload struct {
	UserID    int64  `json:"id"`
	Role      string `json:"role,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// HMACTokenCodec implements TokenCodec using HMAC-signed compact JWS,
// relying only on the standard library. Verification is a pure function of
// (raw, secret, now); tokens are not persisted anywhere, so a token remains
// valid until its natural expiry even after the cookie that carried it has
// been cleared.
type HMACTokenCodec struct {
	secret      []byte
	allowedAlgs map[string]struct{}
	defaultAlg  string
	ttl         time.Duration
	leeway      time.Duration
	now         func() time.Time
}

// CodecOption customizes an HMACTokenCodec at construction time.
type CodecOption func(*HMACTokenCodec)

// WithAlgorithms restricts the accepted signing algorithms. The first entry
// becomes the issuing algorithm. Supported: HS256, HS384, HS512.
func WithAlgorithms(algs ...string) CodecOption {
	return func(c *HMACTokenCodec) {
		if len(algs) > 0 {
			c.allowedAlgs = nil
			c.defaultAlg = algs[0]
			m := make(map[string]struct{}, len(algs))
			for _, a := range algs {
				m[a] = struct{}{}
			}
			c.allowedAlgs = m
		}
	}
}

// WithTokenTTL sets the default lifetime applied when Issue receives no TTL.
func WithTokenTTL(d time.Duration) CodecOption {
	return func(c *HMACTokenCodec) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLeeway tolerates clock skew during expiry checks.
func WithLeeway(d time.Duration) CodecOption {
	return func(c *HMACTokenCodec) {
		if d >= 0 {
			c.leeway = d
		}
	}
}

// WithNowFunc injects a deterministic clock (useful for tests).
func WithNowFunc(fn func() time.Time) CodecOption {
	return func(c *HMACTokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewHMACTokenCodec builds a codec from a symmetric secret. A missing or
// short secret is a configuration error and must prevent the server from
// starting; there is no degraded mode without signing.
func NewHMACTokenCodec(secret []byte, opts ...CodecOption) (*HMACTokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}

	c := &HMACTokenCodec{
		secret:      append([]byte(nil), secret...),
		allowedAlgs: map[string]struct{}{"HS512": {}},
		defaultAlg:  "HS512",
		ttl:         DefaultTokenTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	for alg := range c.allowedAlgs {
		if _, err := signingHasher(alg); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TTL returns the codec's default token lifetime. The cookie manager derives
// Max-Age from it so the cookie and the token expire together.
func (c *HMACTokenCodec) TTL() time.Duration { return c.ttl }

// Issue encodes the claims into a signed token string. Zero IssuedAt and
// ExpiresAt are filled from the clock; ttl <= 0 falls back to the codec
// default.
func (c *HMACTokenCodec) Issue(ctx context.Context, claims Claims, ttl time.Duration) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if claims.UserID <= 0 {
		return "", fmt.Errorf("%w: missing subject id", ErrInvalidClaims)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now()
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = now
	}
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = claims.IssuedAt.Add(ttl)
	}
	if claims.ExpiresAt.Before(claims.IssuedAt) {
		return "", fmt.Errorf("%w: expires before issued", ErrInvalidClaims)
	}

	headerSeg, err := encodeSegment(jwtHeader{Algorithm: c.defaultAlg, Type: "JWT"})
	if err != nil {
		return "", err
	}
	payloadSeg, err := encodeSegment(jwtPayload{
		UserID:    claims.UserID,
		Role:      string(claims.Role),
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	signingInput := headerSeg + "." + payloadSeg
	signature, err := c.sign(signingInput, c.defaultAlg)
	if err != nil {
		return "", err
	}
	return signingInput + "." + signature, nil
}

// Verify parses and validates a token string. Failures are classified as
// exactly one of ErrTokenMalformed, ErrTokenUnsupportedAlg,
// ErrTokenBadSignature, or ErrTokenExpired; callers treat all of them as
// "no credential".
func (c *HMACTokenCodec) Verify(ctx context.Context, raw string) (Claims, error) {
	if err := contextError(ctx); err != nil {
		return Claims{}, err
	}

	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Claims{}, ErrTokenMalformed
	}

	var header jwtHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return Claims{}, ErrTokenMalformed
	}
	if _, ok := c.allowedAlgs[header.Algorithm]; !ok {
		return Claims{}, ErrTokenUnsupportedAlg
	}
	if err := c.verifySignature(parts[0]+"."+parts[1], parts[2], header.Algorithm); err != nil {
		return Claims{}, err
	}

	var payload jwtPayload
	if err := decodeSegment(parts[1], &payload); err != nil {
		return Claims{}, ErrTokenMalformed
	}
	if payload.UserID <= 0 {
		return Claims{}, fmt.Errorf("%w: missing subject id", ErrTokenMalformed)
	}

	claims := Claims{
		UserID:    payload.UserID,
		Role:      Role(payload.Role),
		IssuedAt:  timeFromUnix(payload.IssuedAt),
		ExpiresAt: timeFromUnix(payload.ExpiresAt),
	}
	if claims.ExpiresAt.IsZero() {
		return Claims{}, fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	if c.now().After(claims.ExpiresAt.Add(c.leeway)) {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func (c *HMACTokenCodec) sign(input, alg string) (string, error) {
	hasher, err := signingHasher(alg)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hasher, c.secret)
	_, _ = mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *HMACTokenCodec) verifySignature(input, signature, alg string) error {
	hasher, err := signingHasher(alg)
	if err != nil {
		return err
	}
	provided, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return ErrTokenBadSignature
	}
	mac := hmac.New(hasher, c.secret)
	_, _ = mac.Write([]byte(input))
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrTokenBadSignature
	}
	return nil
}

func signingHasher(alg string) (func() hash.Hash, error) {
	switch alg {
	case "HS256":
		return sha256.New, nil
	case "HS384":
		return sha512.New384, nil
	case "HS512":
		return sha512.New, nil
	default:
		return nil, ErrTokenUnsupportedAlg
	}
}

func encodeSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSegment(segment string, dest any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func timeFromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
