package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/forumkit/forumkit/cache"
)

var (
	ErrResetTokenInvalid = errors.New("auth: invalid or expired reset token")
	ErrResetSenderAbsent = errors.New("auth: password reset sender missing")
)

// DefaultResetTTL bounds how long a password reset link stays usable.
const DefaultResetTTL = 30 * time.Minute

// ResetSender delivers reset tokens out-of-band (email, SMS, etc.).
type ResetSender interface {
	SendResetToken(ctx context.Context, user User, token string) error
}

type resetRecord struct {
	UserID    int64     `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetTokenStore holds one-shot password reset tokens in a TTL cache.
// Unlike the session credential, reset tokens are server-side state on
// purpose: consuming one deletes it, so a link cannot be replayed.
type ResetTokenStore struct {
	store  cache.Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// ResetStoreOptions configures a ResetTokenStore.
type ResetStoreOptions struct {
	Prefix string
	TTL    time.Duration
}

func NewResetTokenStore(store cache.Store, opts ResetStoreOptions) *ResetTokenStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "pwreset"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokenStore{store: store, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *ResetTokenStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

// Create mints a random token for the user and stores it with the configured
// TTL.
func (s *ResetTokenStore) Create(ctx context.Context, userID int64) (string, error) {
	if err := contextError(ctx); err != nil {
		return "", err
	}
	if userID <= 0 {
		return "", ErrUserInvalidInput
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	record, err := json.Marshal(resetRecord{
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, s.key(token), record, s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume resolves a token to its user and deletes it. A second Consume of
// the same token reports ErrResetTokenInvalid.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (int64, error) {
	if err := contextError(ctx); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, ErrResetTokenInvalid
	}

	payload, err := s.store.Get(ctx, s.key(token))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, ErrResetTokenInvalid
		}
		return 0, err
	}

	var record resetRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return 0, err
	}
	_ = s.store.Delete(ctx, s.key(token))

	if record.ExpiresAt.Before(s.now()) {
		return 0, ErrResetTokenInvalid
	}
	return record.UserID, nil
}

// PasswordResetFlow ties the token store, repository, hasher, and sender
// into the forgot-password / reset-password pair of operations.
type PasswordResetFlow struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *ResetTokenStore
	sender ResetSender
}

func NewPasswordResetFlow(users UserRepository, hasher PasswordHasher, tokens *ResetTokenStore, sender ResetSender) (*PasswordResetFlow, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, ErrUserInvalidInput
	}
	return &PasswordResetFlow{users: users, hasher: hasher, tokens: tokens, sender: sender}, nil
}

// Request issues and delivers a reset token for the account behind the
// email. An unknown email reports ErrUserNotFound to the caller; the HTTP
// surface masks it to avoid account enumeration.
func (f *PasswordResetFlow) Request(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrUserInvalidInput
	}
	if f.sender == nil {
		return "", ErrResetSenderAbsent
	}
	user, err := f.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := f.tokens.Create(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if err := f.sender.SendResetToken(ctx, user, token); err != nil {
		return "", err
	}
	return token, nil
}

// Complete consumes the token and stores the new password hash.
func (f *PasswordResetFlow) Complete(ctx context.Context, token string, newPassword []byte) error {
	userID, err := f.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	encoded, err := f.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	return f.users.UpdatePassword(ctx, userID, encoded)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
