package httpx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// ForumClient is a cookie-aware HTTP client for the forum. Login stores the
// session cookie pair in its jar; subsequent requests present it
// automatically, the same way a browser would.
type ForumClient struct {
	resty *resty.Client
}

func NewForumClient(opts ...ClientOption) (*ForumClient, error) {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("httpx: cookie jar: %w", err)
	}

	rc := resty.New()
	rc.SetCookieJar(jar)
	rc.SetTimeout(cfg.Timeout)
	// Redirects are part of the protocol under test (login and logout both
	// answer 302); the caller inspects them rather than following.
	rc.SetRedirectPolicy(resty.NoRedirectPolicy())
	if cfg.BaseURL != "" {
		rc.SetBaseURL(cfg.BaseURL)
	}
	for k, v := range cfg.Headers {
		rc.SetHeader(k, v)
	}

	return &ForumClient{resty: rc}, nil
}

// Login posts credentials. Success is the 302 redirect away from the login
// surface; the jar retains the issued cookies.
func (c *ForumClient) Login(ctx context.Context, username, password string) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetFormData(map[string]string{"username": username, "password": password}).
		Post("/login")
	if err != nil && resp == nil {
		return err
	}
	if resp.StatusCode() != StatusFound {
		return fmt.Errorf("httpx: login failed with status %d", resp.StatusCode())
	}
	if loc := resp.Header().Get("Location"); loc != "/" {
		return fmt.Errorf("httpx: login rejected, redirected to %s", loc)
	}
	return nil
}

// Logout hits the logout route; the server answers with expired cookies that
// evict the pair from the jar.
func (c *ForumClient) Logout(ctx context.Context) error {
	resp, err := c.resty.R().SetContext(ctx).Post("/logout")
	if err != nil && resp == nil {
		return err
	}
	if resp.StatusCode() != StatusFound {
		return fmt.Errorf("httpx: logout failed with status %d", resp.StatusCode())
	}
	return nil
}

// Register creates a new account through the public registration route.
func (c *ForumClient) Register(ctx context.Context, username, email, password string) error {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetFormData(map[string]string{"username": username, "email": email, "password": password}).
		Post("/register")
	if err != nil && resp == nil {
		return err
	}
	if resp.StatusCode() != StatusFound {
		return fmt.Errorf("httpx: register failed with status %d", resp.StatusCode())
	}
	return nil
}

// Get performs a GET carrying whatever session cookies the jar holds.
func (c *ForumClient) Get(ctx context.Context, path string) (*resty.Response, error) {
	return c.resty.R().SetContext(ctx).Get(path)
}

// Cookies returns the jar's cookies for the given URL (test inspection).
func (c *ForumClient) Cookies(rawURL string) []*http.Cookie {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return c.resty.GetClient().Jar.Cookies(parsed)
}
