package httpx

import (
	"errors"

	"github.com/forumkit/forumkit/auth"
)

// AuthHandlers exposes the login/logout/registration/password-reset surface.
// Page rendering happens elsewhere; these handlers own the session cookie
// lifecycle and the redirect flows.
type AuthHandlers struct {
	manager *auth.Manager
}

func NewAuthHandlers(manager *auth.Manager) (*AuthHandlers, error) {
	if manager == nil {
		return nil, errors.New("httpx: auth handlers require a manager")
	}
	return &AuthHandlers{manager: manager}, nil
}

// RegisterAuthRoutes attaches the authentication surface to the server.
func (h *AuthHandlers) RegisterAuthRoutes(e *Echo) {
	e.GET("/login", h.loginPage)
	e.POST("/login", h.login)
	e.GET("/register", h.registerPage)
	e.POST("/register", h.register)
	e.GET("/logout", h.logout)
	e.POST("/logout", h.logout)
	e.GET("/forgot-password", h.forgotPasswordPage)
	e.POST("/forgot-password", h.forgotPassword)
	e.POST("/reset-password", h.resetPassword)
	e.GET("/api/me", h.currentUser)
}

// Entering any auth-surface page clears the cookie pair so no stale identity
// is shown mid-login-flow.
func (h *AuthHandlers) loginPage(c Context) error {
	h.manager.Cookies().ClearSession(c.Response())
	return c.JSON(StatusOK, map[string]any{"page": "login"})
}

func (h *AuthHandlers) login(c Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	principal, err := h.manager.Users().Authenticate(c.Request().Context(), username, []byte(password))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Redirect(StatusFound, "/login?error")
		}
		return err
	}

	if _, err := h.manager.Cookies().IssueSession(c.Request().Context(), c.Response(), principal); err != nil {
		return err
	}
	return c.Redirect(StatusFound, "/")
}

func (h *AuthHandlers) registerPage(c Context) error {
	h.manager.Cookies().ClearSession(c.Response())
	return c.JSON(StatusOK, map[string]any{"page": "register"})
}

func (h *AuthHandlers) register(c Context) error {
	username := c.FormValue("username")
	email := c.FormValue("email")
	password := c.FormValue("password")

	_, err := h.manager.Users().Register(c.Request().Context(), username, email, []byte(password))
	switch {
	case err == nil:
		return c.Redirect(StatusFound, "/login")
	case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, auth.ErrEmailTaken):
		return HTTPError(StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUserInvalidInput),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrPasswordNoUppercase),
		errors.Is(err, auth.ErrPasswordNoLowercase),
		errors.Is(err, auth.ErrPasswordNoDigit):
		return HTTPError(StatusBadRequest, err.Error())
	default:
		return err
	}
}

// logout clears the cookie pair and redirects to the login surface. The old
// token stays valid until its natural expiry if replayed; clearing is
// client-side only.
func (h *AuthHandlers) logout(c Context) error {
	h.manager.Cookies().ClearSession(c.Response())
	return c.Redirect(StatusFound, "/login")
}

func (h *AuthHandlers) forgotPasswordPage(c Context) error {
	h.manager.Cookies().ClearSession(c.Response())
	return c.JSON(StatusOK, map[string]any{"page": "forgot-password"})
}

// forgotPassword answers identically for known and unknown emails so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandlers) forgotPassword(c Context) error {
	email := c.FormValue("email")
	if email == "" {
		return HTTPError(StatusBadRequest, "email is required")
	}
	if _, err := h.manager.RequestPasswordReset(c.Request().Context(), email); err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			return err
		}
	}
	return c.JSON(StatusOK, map[string]any{"status": "reset link sent if the account exists"})
}

func (h *AuthHandlers) resetPassword(c Context) error {
	token := c.FormValue("token")
	password := c.FormValue("password")

	err := h.manager.CompletePasswordReset(c.Request().Context(), token, []byte(password))
	switch {
	case err == nil:
		return c.Redirect(StatusFound, "/login")
	case errors.Is(err, auth.ErrResetTokenInvalid):
		return HTTPError(StatusBadRequest, "invalid or expired reset token")
	default:
		return err
	}
}

// currentUser reports the resolved principal for the request, or an
// anonymous marker. Views use the same projection.
func (h *AuthHandlers) currentUser(c Context) error {
	p, ok := auth.CurrentPrincipal(c.Request())
	if !ok {
		return c.JSON(StatusOK, map[string]any{"authenticated": false})
	}
	return c.JSON(StatusOK, map[string]any{
		"authenticated": true,
		"id":            p.ID,
		"username":      p.Username,
		"role":          string(p.Role),
		"displayName":   p.DisplayName,
		"avatar":        p.Avatar,
	})
}
