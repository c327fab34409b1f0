package auth

import (
	"context"
	"time"

	"github.com/forumkit/forumkit/cache"
)

// Manager bundles the token codec, cookie manager, user service, policy,
// and reset flow behind a single configuration point. The httpx layer is
// wired from a Manager rather than from five separate constructors.
type Manager struct {
	codec   *HMACTokenCodec
	cookies *CookieManager
	users   *UserService
	policy  *Policy
	reset   *PasswordResetFlow
}

// ManagerConfig wires the dependencies required for Manager. Secret and
// Repository are mandatory; everything else has defaults. A bad Secret is a
// configuration error and fails construction so the process never serves
// traffic with authentication silently disabled.
type ManagerConfig struct {
	Secret        []byte
	Algorithms    []string
	SessionTTL    time.Duration
	SecureCookies bool
	Repository    UserRepository
	Hasher        PasswordHasher
	Rules         []Rule
	ResetCache    cache.Store
	ResetTTL      time.Duration
	ResetSender   ResetSender
	Now           func() time.Time
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	codecOpts := []CodecOption{}
	if len(cfg.Algorithms) > 0 {
		codecOpts = append(codecOpts, WithAlgorithms(cfg.Algorithms...))
	}
	if cfg.SessionTTL > 0 {
		codecOpts = append(codecOpts, WithTokenTTL(cfg.SessionTTL))
	}
	if cfg.Now != nil {
		codecOpts = append(codecOpts, WithNowFunc(cfg.Now))
	}
	codec, err := NewHMACTokenCodec(cfg.Secret, codecOpts...)
	if err != nil {
		return nil, err
	}

	cookies, err := NewCookieManager(codec, WithSecureCookies(cfg.SecureCookies))
	if err != nil {
		return nil, err
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	users, err := NewUserService(cfg.Repository, hasher)
	if err != nil {
		return nil, err
	}

	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	policy, err := NewPolicy(rules...)
	if err != nil {
		return nil, err
	}

	m := &Manager{codec: codec, cookies: cookies, users: users, policy: policy}

	if cfg.ResetCache != nil {
		tokens := NewResetTokenStore(cfg.ResetCache, ResetStoreOptions{TTL: cfg.ResetTTL})
		flow, err := NewPasswordResetFlow(cfg.Repository, hasher, tokens, cfg.ResetSender)
		if err != nil {
			return nil, err
		}
		m.reset = flow
	}
	return m, nil
}

// Codec exposes the token codec.
func (m *Manager) Codec() *HMACTokenCodec { return m.codec }

// Cookies exposes the session cookie manager.
func (m *Manager) Cookies() *CookieManager { return m.cookies }

// Users exposes the user service (also the PrincipalStore).
func (m *Manager) Users() *UserService { return m.users }

// Policy exposes the authorization rule table.
func (m *Manager) Policy() *Policy { return m.policy }

// Authenticator builds the request middleware from the manager's codec and
// user service.
func (m *Manager) Authenticator(opts ...AuthenticatorOption) (*Authenticator, error) {
	return NewAuthenticator(m.codec, m.users, opts...)
}

// RequestPasswordReset proxies the reset flow if one is configured.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if m.reset == nil {
		return "", ErrResetSenderAbsent
	}
	return m.reset.Request(ctx, email)
}

// CompletePasswordReset proxies the reset flow if one is configured.
func (m *Manager) CompletePasswordReset(ctx context.Context, token string, newPassword []byte) error {
	if m.reset == nil {
		return ErrResetTokenInvalid
	}
	return m.reset.Complete(ctx, token, newPassword)
}
