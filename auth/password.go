package auth

import (
	"context"
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort    = errors.New("auth: password too short")
	ErrPasswordTooLong     = errors.New("auth: password too long")
	ErrPasswordNoUppercase = errors.New("auth: password must contain uppercase letter")
	ErrPasswordNoLowercase = errors.New("auth: password must contain lowercase letter")
	ErrPasswordNoDigit     = errors.New("auth: password must contain digit")
	ErrPasswordMismatch    = errors.New("auth: password does not match")
	ErrPasswordInvalidHash = errors.New("auth: invalid password hash")
)

const (
	DefaultBcryptCost = 12
	MinPasswordLength = 8
	// MaxPasswordLength guards bcrypt's 72-byte input limit with headroom
	// removed; longer inputs are rejected instead of silently truncated.
	MaxPasswordLength = 72
)

// PasswordPolicy configures password strength requirements applied before
// hashing.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
}

// DefaultPasswordPolicy matches the forum's registration validation.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        MinPasswordLength,
		MaxLength:        MaxPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
	}
}

// Validate checks a plaintext password against the policy.
func (p PasswordPolicy) Validate(plain []byte) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = MinPasswordLength
	}
	maxLen := p.MaxLength
	if maxLen <= 0 {
		maxLen = MaxPasswordLength
	}
	if len(plain) < minLen {
		return ErrPasswordTooShort
	}
	if len(plain) > maxLen {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range string(plain) {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireUppercase && !hasUpper {
		return ErrPasswordNoUppercase
	}
	if p.RequireLowercase && !hasLower {
		return ErrPasswordNoLowercase
	}
	if p.RequireDigit && !hasDigit {
		return ErrPasswordNoDigit
	}
	return nil
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain []byte) (string, error)
	Compare(ctx context.Context, plain []byte, encoded string) error
}

// BcryptHasher is the production PasswordHasher. The encoded form is the
// standard bcrypt string, so hashes written by previous deployments verify
// unchanged.
type BcryptHasher struct {
	cost   int
	policy PasswordPolicy
}

// HasherOption customizes a BcryptHasher.
type HasherOption func(*BcryptHasher)

// WithBcryptCost overrides the work factor.
func WithBcryptCost(cost int) HasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPasswordPolicy overrides the strength checks applied before hashing.
func WithPasswordPolicy(policy PasswordPolicy) HasherOption {
	return func(h *BcryptHasher) { h.policy = policy }
}

func NewBcryptHasher(opts ...HasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost, policy: DefaultPasswordPolicy()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash validates the plaintext against the policy and returns its bcrypt
// encoding.
func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if err := h.policy.Validate(plain); err != nil {
		return "", err
	}
	encoded, err := bcrypt.GenerateFromPassword(plain, h.cost)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Compare verifies plaintext against a stored bcrypt hash. A wrong password
// reports ErrPasswordMismatch; a corrupt stored hash reports
// ErrPasswordInvalidHash.
func (h *BcryptHasher) Compare(ctx context.Context, plain []byte, encoded string) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), plain)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return ErrPasswordInvalidHash
	}
}
