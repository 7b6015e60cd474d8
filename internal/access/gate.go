package access

import (
	"net/url"
	"strings"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

// Subject is the part of a session snapshot the gate looks at.
type Subject struct {
	Loading       bool
	Authenticated bool
	// Resolved is true once a user (real or fallback) is attached.
	Resolved bool
	Role     models.Role
}

// Outcome is the state the gate settles in for one navigation.
type Outcome int

const (
	// OutcomeLoading renders a neutral placeholder and never redirects.
	OutcomeLoading Outcome = iota
	OutcomeRedirectLogin
	// OutcomeUnresolved renders nothing until identity resolution completes.
	OutcomeUnresolved
	OutcomeRedirectHome
	OutcomeAllow
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeUnresolved:
		return "unresolved"
	case OutcomeRedirectHome:
		return "redirect_home"
	case OutcomeAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision carries the redirect target for the redirect outcomes.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide evaluates one navigation to target (path plus optional query) against
// the allowed roles of its route. It holds no state between calls.
func Decide(s Subject, target string, allowed []models.Role) Decision {
	switch {
	case s.Loading:
		return Decision{Outcome: OutcomeLoading}
	case !s.Authenticated:
		return Decision{Outcome: OutcomeRedirectLogin, Location: LoginURL(target)}
	case !s.Resolved:
		return Decision{Outcome: OutcomeUnresolved}
	}
	r := Route{Allowed: allowed}
	if !s.Role.Valid() || !r.Allows(s.Role) {
		return Decision{Outcome: OutcomeRedirectHome, Location: HomePath(s.Role)}
	}
	return Decision{Outcome: OutcomeAllow}
}

// LoginURL is the login page carrying the path to return to afterwards.
func LoginURL(next string) string {
	if _, ok := SafeNext(next); !ok {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"next": {next}}.Encode()
}

// SafeNext accepts only local absolute paths as post-login targets.
func SafeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "", false
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "", false
	}
	if strings.ContainsFunc(next, func(r rune) bool { return r < 0x20 || r == 0x7f || r == '\\' }) {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	p := pathOnly(next)
	if p == LoginPath || p == SignupPath {
		return "", false
	}
	return next, true
}
