package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forumkit/forumkit/cache"
)

// memStore is an in-process cache.Store with TTL semantics, enough for
// exercising the reset token flow without a running Redis.
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value   []byte
	expires time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]memEntry{}, now: time.Now}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || (!entry.expires.IsZero() && entry.expires.Before(s.now())) {
		delete(s.entries, key)
		return nil, cache.ErrNotFound
	}
	return entry.value, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendResetToken(_ context.Context, _ User, token string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, token)
	return nil
}

func TestResetTokenStoreCreateConsume(t *testing.T) {
	store := NewResetTokenStore(newMemStore(), ResetStoreOptions{})
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	userID, err := store.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if userID != 7 {
		t.Errorf("userID = %d, want 7", userID)
	}

	// One-shot: the same token cannot be consumed twice.
	if _, err := store.Consume(ctx, token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("second Consume = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetTokenStoreRejectsBadInput(t *testing.T) {
	store := NewResetTokenStore(newMemStore(), ResetStoreOptions{})
	ctx := context.Background()

	if _, err := store.Create(ctx, 0); !errors.Is(err, ErrUserInvalidInput) {
		t.Errorf("Create(0) = %v, want ErrUserInvalidInput", err)
	}
	if _, err := store.Consume(ctx, ""); !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("Consume(\"\") = %v, want ErrResetTokenInvalid", err)
	}
	if _, err := store.Consume(ctx, "never-issued"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("Consume(unknown) = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetTokenStoreExpiry(t *testing.T) {
	now := time.Now()
	mem := newMemStore()
	mem.now = func() time.Time { return now }
	store := NewResetTokenStore(mem, ResetStoreOptions{TTL: time.Minute})
	store.now = func() time.Time { return now }

	token, err := store.Create(context.Background(), 7)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Consume(context.Background(), token); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expired Consume = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetTokensAreDistinct(t *testing.T) {
	store := NewResetTokenStore(newMemStore(), ResetStoreOptions{})
	ctx := context.Background()

	first, _ := store.Create(ctx, 1)
	second, _ := store.Create(ctx, 1)
	if first == second {
		t.Fatal("tokens must be random, not derived from the user")
	}
}

func newTestResetFlow(t *testing.T) (*PasswordResetFlow, *fakeUserRepo, *fakeSender) {
	t.Helper()
	repo := newFakeUserRepo()
	sender := &fakeSender{}
	tokens := NewResetTokenStore(newMemStore(), ResetStoreOptions{})
	flow, err := NewPasswordResetFlow(repo, newTestHasher(), tokens, sender)
	if err != nil {
		t.Fatalf("NewPasswordResetFlow error: %v", err)
	}
	return flow, repo, sender
}

func TestPasswordResetFlow(t *testing.T) {
	flow, repo, sender := newTestResetFlow(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, User{Username: "ada", Email: "ada@example.com", Password: "old", Role: RoleUser})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	token, err := flow.Request(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != token {
		t.Fatalf("sender received %v, want [%s]", sender.sent, token)
	}

	if err := flow.Complete(ctx, token, []byte("N3wsecret")); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	stored, _ := repo.GetUserByID(ctx, user.ID)
	hasher := newTestHasher()
	if err := hasher.Compare(ctx, []byte("N3wsecret"), stored.Password); err != nil {
		t.Errorf("new password should verify against stored hash: %v", err)
	}

	// The link is dead after use.
	if err := flow.Complete(ctx, token, []byte("An0thersecret")); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("reused token = %v, want ErrResetTokenInvalid", err)
	}
}

func TestPasswordResetFlowUnknownEmail(t *testing.T) {
	flow, _, sender := newTestResetFlow(t)

	if _, err := flow.Request(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown email = %v, want ErrUserNotFound", err)
	}
	if len(sender.sent) != 0 {
		t.Error("nothing should be sent for an unknown email")
	}
}

func TestPasswordResetFlowWeakNewPassword(t *testing.T) {
	flow, repo, _ := newTestResetFlow(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, User{Username: "ada", Email: "ada@example.com", Password: "old"}); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	token, err := flow.Request(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if err := flow.Complete(ctx, token, []byte("weak")); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("weak password = %v, want ErrPasswordTooShort", err)
	}
}

func TestPasswordResetFlowNoSender(t *testing.T) {
	repo := newFakeUserRepo()
	tokens := NewResetTokenStore(newMemStore(), ResetStoreOptions{})
	flow, err := NewPasswordResetFlow(repo, newTestHasher(), tokens, nil)
	if err != nil {
		t.Fatalf("NewPasswordResetFlow error: %v", err)
	}

	if _, err := flow.Request(context.Background(), "ada@example.com"); !errors.Is(err, ErrResetSenderAbsent) {
		t.Fatalf("Request without sender = %v, want ErrResetSenderAbsent", err)
	}
}
