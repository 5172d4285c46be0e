package guard

import "strings"

// Routes names the role panels of the front end.
type Routes struct {
	// Login is the login page.
	Login string
	// ModelHome is the model dashboard.
	ModelHome string
	// ClientHome is the single page of the client panel.
	ClientHome string
	// PanelPrefix is the root of every guarded panel page.
	PanelPrefix string
}

// DefaultRoutes returns the front end's standard panel layout.
func DefaultRoutes() Routes {
	return Routes{
		Login:       DefaultLoginPath,
		ModelHome:   "/panel/dashboard",
		ClientHome:  "/panel/cliente",
		PanelPrefix: "/panel",
	}
}

// Home returns the default destination of a role.
func (r Routes) Home(isModelo bool) string {
	if isModelo {
		return r.ModelHome
	}
	return r.ClientHome
}

// InPanel reports whether path is the panel root or below it.
func (r Routes) InPanel(path string) bool {
	return underPrefix(path, r.PanelPrefix)
}

// IsClientHome reports whether path is the canonical client page,
// ignoring a trailing slash.
func (r Routes) IsClientHome(path string) bool {
	return trimSlash(path) == trimSlash(r.ClientHome)
}

// OptionsFor returns the guard options of a page, and false when the page is
// public. The model dashboard requires the model role, the client page the
// client role, and every other panel page only a session.
func (r Routes) OptionsFor(path string) (Options, bool) {
	if !r.InPanel(path) {
		return Options{}, false
	}
	opts := DefaultOptions()
	if r.Login != "" {
		opts.RedirectTo = r.Login
	}
	switch {
	case underPrefix(path, r.ModelHome):
		opts.RequireModel = true
	case underPrefix(path, r.ClientHome):
		opts.RequireClient = true
	}
	return opts, true
}

func underPrefix(path, prefix string) bool {
	prefix = trimSlash(prefix)
	if prefix == "" {
		return false
	}
	path = trimSlash(path)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
