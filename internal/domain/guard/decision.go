// Package guard decides whether a protected page may render for the current
// session, or where the visitor must be sent instead.
package guard

import "fmt"

// Kind enumerates the guard outcomes.
type Kind int

const (
	// Pending means the session is not settled yet; render nothing.
	Pending Kind = iota
	// Allow means the page may render.
	Allow
	// RedirectToLogin sends an unauthenticated visitor to the login page.
	RedirectToLogin
	// RedirectToRole sends an authenticated visitor to the panel of their role.
	RedirectToRole
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToRole:
		return "redirect_role"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one guard evaluation. Target is set for the
// redirect kinds only.
type Decision struct {
	Kind   Kind
	Target string
}

// IsRedirect reports whether the decision sends the visitor elsewhere.
// Redirect decisions are terminal for a mount.
func (d Decision) IsRedirect() bool {
	return d.Kind == RedirectToLogin || d.Kind == RedirectToRole
}

// String formats the decision for logs and CLI output.
func (d Decision) String() string {
	if d.IsRedirect() {
		return fmt.Sprintf("%s %s", d.Kind, d.Target)
	}
	return d.Kind.String()
}
