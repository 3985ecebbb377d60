package guard

import (
	"net/url"
)

// Well-known navigation targets.
const (
	RootPath          = "/"
	LoginPath         = "/login"
	RegisterPath      = "/register"
	ResetPasswordPath = "/reset-password"
	UnauthorizedPath  = "/unauthorized"
)

// Viewer is the session state a guard needs.
type Viewer interface {
	Loading() bool
	IsAuthenticated() bool
	// HasRole must compare case-insensitively.
	HasRole(role string) bool
	Role() string
}

// Outcome is the kind of a guard Decision.
type Outcome int

const (
	// Allow renders the target.
	Allow Outcome = iota
	// Suspend renders nothing until the session settles.
	Suspend
	// Redirect navigates to Decision.To instead.
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Suspend:
		return "suspend"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of a guard check.
type Decision struct {
	Outcome Outcome
	// To is the redirect target. Empty unless Outcome is Redirect.
	To string
	// From is the location originally requested, set on redirects to login.
	From string
}

// Location is To with From attached as the "from" query parameter.
func (d Decision) Location() string {
	if d.Outcome != Redirect {
		return ""
	}
	if d.From == "" {
		return d.To
	}
	return d.To + "?" + url.Values{"from": {d.From}}.Encode()
}

func allow() Decision { return Decision{Outcome: Allow} }

func suspend() Decision { return Decision{Outcome: Suspend} }

func redirect(to string) Decision { return Decision{Outcome: Redirect, To: to} }

// CheckRoles gates target for v. An empty roles list only requires
// authentication; otherwise v must hold at least one of roles.
func CheckRoles(v Viewer, target string, roles ...string) Decision {
	if v == nil {
		return Decision{Outcome: Redirect, To: LoginPath, From: target}
	}
	if v.Loading() {
		return suspend()
	}
	if !v.IsAuthenticated() {
		return Decision{Outcome: Redirect, To: LoginPath, From: target}
	}
	if len(roles) == 0 {
		return allow()
	}
	for _, role := range roles {
		if v.HasRole(role) {
			return allow()
		}
	}
	return Decision{Outcome: Redirect, To: UnauthorizedPath, From: target}
}
