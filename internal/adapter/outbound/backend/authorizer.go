package backend

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenSource yields the access token to attach to outgoing requests.
// It is read on every request so a login or logout takes effect at once.
type TokenSource interface {
	AccessToken() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

// AccessToken calls f. A nil f yields no token.
func (f TokenSourceFunc) AccessToken() string {
	if f == nil {
		return ""
	}
	return f()
}

type skipAuthKey struct{}

// WithoutAuthorization marks ctx so the Authorizer leaves requests made with
// it unauthenticated. Token and registration calls use it: a stale bearer
// token would make the backend reject them.
func WithoutAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey{}, true)
}

func authorizationSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipAuthKey{}).(bool)
	return v
}

// Authorizer is an http.RoundTripper that attaches the current access token
// as a bearer credential. Requests that already carry an Authorization
// header are sent as they are.
type Authorizer struct {
	Source TokenSource
	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (a *Authorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	base := a.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := a.token()
	if token == "" || req.Header.Get("Authorization") != "" || authorizationSkipped(req.Context()) {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r)
}

func (a *Authorizer) token() string {
	if a == nil || a.Source == nil {
		return ""
	}
	return a.Source.AccessToken()
}

// NewTransport returns the instrumented, authorizing transport used for every
// backend call.
func NewTransport(source TokenSource, base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(&Authorizer{Source: source, Base: base})
}
