package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// Keys the token endpoint has been seen to use, in order of preference.
// Paths are dot-separated.
var (
	accessTokenKeys  = []string{"tokens.access", "access", "token", "jwt"}
	refreshTokenKeys = []string{"tokens.refresh", "refresh"}
)

// decodeTokenPair translates a token response into a Session. The access
// token is empty when no accepted key carries a non-empty string.
func decodeTokenPair(body []byte) (session.Session, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	return session.Session{
		AccessToken:  firstString(doc, accessTokenKeys),
		RefreshToken: firstString(doc, refreshTokenKeys),
	}, nil
}

func firstString(doc map[string]any, paths []string) string {
	for _, p := range paths {
		if s, ok := lookup(doc, p).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// identityResponse is the body of the identity endpoint. Either
// authentication flag may be used; both absent means authenticated.
type identityResponse struct {
	IsAuthenticated *bool `json:"is_authenticated"`
	Authenticated   *bool `json:"authenticated"`
	IsModelo        bool  `json:"is_modelo"`
}

func (r identityResponse) claims() session.Claims {
	auth := true
	switch {
	case r.IsAuthenticated != nil:
		auth = *r.IsAuthenticated
	case r.Authenticated != nil:
		auth = *r.Authenticated
	}
	return session.Claims{Authenticated: auth, IsModelo: r.IsModelo}
}

// errorMessage extracts a human-readable message from an error body:
// "detail", "message" or "error", then the first non-field error.
func errorMessage(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, k := range []string{"detail", "message", "error"} {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	if msgs := toStrings(doc["non_field_errors"]); len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// fieldErrors reads a field-keyed error body. Values may be a message or a
// list of messages; anything else is skipped.
func fieldErrors(body []byte) map[string][]string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	fields := make(map[string][]string, len(doc))
	for k, v := range doc {
		if msgs := toStrings(v); len(msgs) > 0 {
			fields[k] = msgs
		}
	}
	return fields
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
