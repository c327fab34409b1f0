package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		Secret:     testSecret,
		Repository: newFakeUserRepo(),
		Hasher:     newTestHasher(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

// A missing or weak secret is a startup failure, never a degraded runtime.
func TestNewManagerRejectsBadSecret(t *testing.T) {
	base := ManagerConfig{Repository: newFakeUserRepo(), Hasher: newTestHasher()}

	cfg := base
	cfg.Secret = nil
	if _, err := NewManager(cfg); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("nil secret = %v, want ErrMissingSecret", err)
	}

	cfg = base
	cfg.Secret = []byte("short")
	if _, err := NewManager(cfg); !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("weak secret = %v, want ErrWeakSecret", err)
	}
}

func TestNewManagerRequiresRepository(t *testing.T) {
	if _, err := NewManager(ManagerConfig{Secret: testSecret}); err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestNewManagerRejectsBadRules(t *testing.T) {
	_, err := NewManager(ManagerConfig{
		Secret:     testSecret,
		Repository: newFakeUserRepo(),
		Rules:      []Rule{{Pattern: "no-slash", Require: Public}},
	})
	if !errors.Is(err, ErrPolicyInvalidRule) {
		t.Fatalf("bad rule = %v, want ErrPolicyInvalidRule", err)
	}
}

func TestManagerEndToEndSession(t *testing.T) {
	m := newTestManager(t, func(cfg *ManagerConfig) {
		cfg.SessionTTL = time.Hour
	})
	ctx := context.Background()

	user, err := m.Users().Register(ctx, "ada", "ada@example.com", []byte("Sup3rsecret"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	rec := httptest.NewRecorder()
	raw, err := m.Cookies().IssueSession(ctx, rec, user.Principal())
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	a, err := m.Authenticator()
	if err != nil {
		t.Fatalf("Authenticator error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/profile/ada", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: raw})

	p, ok := a.Resolve(req)
	if !ok {
		t.Fatal("session cookie should resolve to the registered user")
	}
	if p.ID != user.ID || p.Username != "ada" {
		t.Errorf("principal = %+v", p)
	}

	if got := m.Policy().Evaluate(http.MethodGet, "/profile/ada", &p); got != Allow {
		t.Errorf("member on member surface = %v, want Allow", got)
	}
	if got := m.Policy().Evaluate(http.MethodGet, "/admin/users", &p); got != Forbid {
		t.Errorf("member on admin surface = %v, want Forbid", got)
	}
}

func TestManagerPasswordResetWiring(t *testing.T) {
	var repo *fakeUserRepo
	sender := &fakeSender{}
	m := newTestManager(t, func(cfg *ManagerConfig) {
		repo = cfg.Repository.(*fakeUserRepo)
		cfg.ResetCache = newMemStore()
		cfg.ResetSender = sender
	})
	ctx := context.Background()

	user, err := m.Users().Register(ctx, "ada", "ada@example.com", []byte("Sup3rsecret"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	token, err := m.RequestPasswordReset(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset error: %v", err)
	}
	if err := m.CompletePasswordReset(ctx, token, []byte("N3wsecret")); err != nil {
		t.Fatalf("CompletePasswordReset error: %v", err)
	}

	stored, _ := repo.GetUserByID(ctx, user.ID)
	if err := newTestHasher().Compare(ctx, []byte("N3wsecret"), stored.Password); err != nil {
		t.Errorf("reset password should verify: %v", err)
	}
}

func TestManagerResetUnconfigured(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.RequestPasswordReset(context.Background(), "a@example.com"); !errors.Is(err, ErrResetSenderAbsent) {
		t.Errorf("RequestPasswordReset = %v, want ErrResetSenderAbsent", err)
	}
	if err := m.CompletePasswordReset(context.Background(), "token", []byte("N3wsecret")); !errors.Is(err, ErrResetTokenInvalid) {
		t.Errorf("CompletePasswordReset = %v, want ErrResetTokenInvalid", err)
	}
}
