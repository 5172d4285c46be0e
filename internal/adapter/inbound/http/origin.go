package http

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// loopbackHosts are always accepted as Host.
var loopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// AllowedHosts returns the host names the server answers to: loopback, the
// host of addr when it names one, and extra.
func AllowedHosts(addr string, extra ...string) []string {
	hosts := append([]string(nil), loopbackHosts...)
	if h := hostOnly(addr); h != "" {
		if ip := net.ParseIP(h); ip == nil || !ip.IsUnspecified() {
			hosts = append(hosts, h)
		}
	}
	for _, h := range extra {
		if h = hostOnly(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// HostCheckMiddleware answers 403 to requests whose Host is not in allowed.
// It keeps a DNS-rebound name from reaching a server that holds a session.
func HostCheckMiddleware(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, h := range allowed {
		set[strings.ToLower(h)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := set[hostOnly(r.Host)]; !ok {
				LoggerFromContext(r.Context()).Warn("rejected request for unknown host", "host", r.Host, "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SameOriginMiddleware answers 403 to browser requests sent from another
// site. Requests without Sec-Fetch-Site, Origin or Referer come from
// non-browser clients and pass.
func SameOriginMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isSameOrigin(r) {
				LoggerFromContext(r.Context()).Warn("rejected cross-origin request",
					"path", r.URL.Path,
					"origin", r.Header.Get("Origin"),
					"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
				)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSameOrigin(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.Header.Get("Sec-Fetch-Site"))) {
	case "", "same-origin", "none":
	default:
		// same-site covers other ports on localhost.
		return false
	}
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
		return sameHost(origin, r.Host)
	}
	if referer := strings.TrimSpace(r.Header.Get("Referer")); referer != "" {
		return sameHost(referer, r.Host)
	}
	return true
}

// sameHost reports whether raw is an http(s) URL on host, port included.
func sameHost(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		// Covers the opaque "null" origin.
		return false
	}
	return u.Host != "" && strings.EqualFold(u.Host, host)
}

// hostOnly strips the port and IPv6 brackets and lowercases the name.
func hostOnly(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		hostport = h
	}
	return strings.ToLower(strings.Trim(hostport, "[]"))
}
