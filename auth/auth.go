package auth

import (
	"context"
	"strings"
	"time"
)

// Role is one of the fixed access levels a forum account can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a stored role string onto a known Role. Unknown values
// report false so callers can decide whether to degrade or reject.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Principal is the identity resolved for exactly one request. It is
// reconstructed from the store on every request and never cached or shared
// across requests.
type Principal struct {
	ID          int64
	Username    string
	Role        Role
	DisplayName string
	Avatar      string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// HasRole reports whether the principal holds any of the given roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Claims models the payload embedded inside a signed credential token.
// Role may be empty; older tokens omit it and the middleware re-derives the
// role from the principal store instead of trusting the claim.
type Claims struct {
	UserID    int64
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the claims are past their expiry at the given time.
func (c Claims) Expired(at time.Time) bool {
	return !c.ExpiresAt.IsZero() && at.After(c.ExpiresAt)
}

// TokenCodec issues and verifies signed credential strings. Implementations
// must be safe for concurrent use and must classify every verification
// failure as one of the token sentinel errors rather than panicking.
type TokenCodec interface {
	Issue(ctx context.Context, claims Claims, ttl time.Duration) (string, error)
	Verify(ctx context.Context, raw string) (Claims, error)
}

// PrincipalStore looks up the identity referenced by a verified token.
// Lookups inherit the request context and may block on external storage.
type PrincipalStore interface {
	FindByID(ctx context.Context, id int64) (Principal, error)
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
