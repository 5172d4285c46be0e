package guard

import (
	"net/url"
	"strings"
)

// NextParam is the query parameter carrying the post-login destination.
const NextParam = "next"

// IsRelativePath reports whether p is a same-origin path: it starts with
// exactly one '/' and cannot be read as a scheme-relative URL. Browsers drop
// tab, CR and LF while parsing, so "/\t/host" reads as "//host"; any ASCII
// control character is rejected.
func IsRelativePath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return false
	}
	if strings.IndexFunc(p, isControl) >= 0 {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// SafeNext returns next when it may be honored as a post-login redirect:
// a same-origin relative path other than the bare root. Anything else must
// fall back to the role default.
func SafeNext(next string) (string, bool) {
	if next == "/" || !IsRelativePath(next) {
		return "", false
	}
	return next, true
}

// LoginTarget builds the login redirect for a visitor at location.
func LoginTarget(loginPath, location string, withNext bool) string {
	if !withNext || location == "" {
		return loginPath
	}
	sep := "?"
	if strings.Contains(loginPath, "?") {
		sep = "&"
	}
	return loginPath + sep + NextParam + "=" + encodeComponent(location)
}

// encodeComponent percent-encodes s like encodeURIComponent, so
// "/panel/dashboard" becomes "%2Fpanel%2Fdashboard" and "!'()*" stay as is.
func encodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
