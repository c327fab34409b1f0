package auth

import (
	"errors"
	"path"
	"strings"
)

var ErrPolicyInvalidRule = errors.New("auth: invalid authorization rule")

// Decision is the outcome of evaluating a request against the policy. The
// two deny outcomes are deliberately distinct: an anonymous request is sent
// to the login surface, while an authenticated request lacking the required
// role gets a forbidden response. Collapsing them would leak information
// asymmetrically.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	Forbid
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case Forbid:
		return "forbid"
	default:
		return "unknown"
	}
}

// Requirement is the access level a rule demands.
type Requirement struct {
	authenticated bool
	roles         []Role
}

// Public allows the request unconditionally.
var Public = Requirement{}

// Authenticated requires any resolved principal.
var Authenticated = Requirement{authenticated: true}

// HasRole requires a principal holding one of the given roles.
func HasRole(roles ...Role) Requirement {
	return Requirement{authenticated: true, roles: append([]Role(nil), roles...)}
}

// Rule binds a path pattern to a requirement. Patterns are either an exact
// path, an anchored prefix glob ("/admin/**" matches /admin and anything
// below it), or the global catch-all "*".
type Rule struct {
	Pattern string
	Require Requirement
}

// Policy is an ordered rule table evaluated first-match-wins. Specific rules
// must be listed before broader ones. The table is immutable after
// construction and safe for concurrent reads.
type Policy struct {
	rules []Rule
}

func NewPolicy(rules ...Rule) (*Policy, error) {
	for _, r := range rules {
		if err := validatePattern(r.Pattern); err != nil {
			return nil, err
		}
	}
	return &Policy{rules: append([]Rule(nil), rules...)}, nil
}

// DefaultRules reproduces the forum's access table: public pages and static
// assets, authenticated member surfaces, and the admin area.
func DefaultRules() []Rule {
	public := []string{
		"/", "/home", "/login", "/register", "/forgot-password",
		"/reset-password", "/error", "/change-language", "/change-theme",
		"/css/**", "/js/**", "/images/**", "/avatar/**",
	}
	authenticated := []string{"/profile/**", "/settings/**", "/api/settings/**"}

	rules := make([]Rule, 0, len(public)+len(authenticated)+1)
	for _, p := range public {
		rules = append(rules, Rule{Pattern: p, Require: Public})
	}
	for _, p := range authenticated {
		rules = append(rules, Rule{Pattern: p, Require: Authenticated})
	}
	rules = append(rules, Rule{Pattern: "/admin/**", Require: HasRole(RoleAdmin)})
	return rules
}

// Evaluate decides whether the request may proceed. The principal is nil for
// anonymous requests. Method is accepted so callers can differentiate later,
// but the current rule set does not distinguish methods. A path matching no
// rule is allowed; that permissive default mirrors the deployed behavior and
// is a deliberate choice, so new restricted surfaces must be added to the
// table explicitly.
func (p *Policy) Evaluate(method, reqPath string, principal *Principal) Decision {
	_ = method
	normalized := normalizePath(reqPath)

	for _, rule := range p.rules {
		if !matchPattern(rule.Pattern, normalized) {
			continue
		}
		return decide(rule.Require, principal)
	}
	return Allow
}

func decide(req Requirement, principal *Principal) Decision {
	if !req.authenticated {
		return Allow
	}
	if principal == nil {
		return RedirectLogin
	}
	if len(req.roles) == 0 {
		return Allow
	}
	if principal.HasRole(req.roles...) {
		return Allow
	}
	return Forbid
}

// normalizePath collapses dot segments before matching so traversal tricks
// like /css/../admin cannot slip past an anchored pattern.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}

func matchPattern(pattern, reqPath string) bool {
	switch pattern {
	case "", "*", "/**":
		return pattern != ""
	}
	if base, ok := strings.CutSuffix(pattern, "/**"); ok {
		if base == "" {
			return true
		}
		return reqPath == base || strings.HasPrefix(reqPath, base+"/")
	}
	return reqPath == pattern
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return ErrPolicyInvalidRule
	}
	if pattern == "*" || pattern == "/**" {
		return nil
	}
	if !strings.HasPrefix(pattern, "/") {
		return ErrPolicyInvalidRule
	}
	if strings.Contains(strings.TrimSuffix(pattern, "/**"), "*") {
		return ErrPolicyInvalidRule
	}
	return nil
}
