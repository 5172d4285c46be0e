package guard

import (
	"strings"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// Input is everything one evaluation depends on.
type Input struct {
	State session.State
	// Location is the requested path, optionally with its query string.
	Location string
	Options  Options
	Routes   Routes
}

// Evaluate is the guard's pure decision function. Rules are checked once,
// in precedence order, so the result can never oscillate within one
// evaluation:
//
//  1. storage not restored yet: Pending
//  2. identity check in flight, or a session whose identity is unresolved: Pending
//  3. not authenticated: RedirectToLogin
//  4. model page, non-model identity: RedirectToRole(client home)
//  5. client page, model identity: RedirectToRole(model home); a client
//     anywhere in the panel other than its home: RedirectToRole(client home)
//  6. Allow
func Evaluate(in Input) Decision {
	st := in.State
	id := st.Identity

	if !st.HasHydrated() {
		return Decision{Kind: Pending}
	}
	if id.IsCheckingAuth {
		return Decision{Kind: Pending}
	}
	if st.Session.HasAccess() && !id.Resolved {
		return Decision{Kind: Pending}
	}
	if !id.IsAuthenticated {
		return Decision{
			Kind:   RedirectToLogin,
			Target: LoginTarget(in.Options.loginPath(), in.Location, in.Options.WithNext),
		}
	}

	routes := in.Routes
	if in.Options.RequireModel && !id.IsModelo {
		return Decision{Kind: RedirectToRole, Target: routes.ClientHome}
	}
	if in.Options.RequireClient && id.IsModelo {
		return Decision{Kind: RedirectToRole, Target: routes.ModelHome}
	}
	// Clients have exactly one panel page.
	path := pathOf(in.Location)
	if !id.IsModelo && routes.InPanel(path) && !routes.IsClientHome(path) {
		return Decision{Kind: RedirectToRole, Target: routes.ClientHome}
	}
	return Decision{Kind: Allow}
}

func pathOf(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}
