package http

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func TestAllowedHosts(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		extra []string
		want  []string
	}{
		{name: "loopback addr", addr: "127.0.0.1:3000", want: []string{"localhost", "127.0.0.1", "::1", "127.0.0.1"}},
		{name: "wildcard addr adds nothing", addr: "0.0.0.0:3000", want: []string{"localhost", "127.0.0.1", "::1"}},
		{name: "empty host", addr: ":3000", want: []string{"localhost", "127.0.0.1", "::1"}},
		{name: "named addr and extras", addr: "vitrina.lan:3000", extra: []string{"Front.Example", "[fe80::1]"}, want: []string{"localhost", "127.0.0.1", "::1", "vitrina.lan", "front.example", "fe80::1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllowedHosts(tt.addr, tt.extra...); !slices.Equal(got, tt.want) {
				t.Errorf("AllowedHosts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHostCheckMiddleware(t *testing.T) {
	h := HostCheckMiddleware(AllowedHosts("127.0.0.1:3000"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		host string
		want int
	}{
		{"127.0.0.1:3000", http.StatusNoContent},
		{"LOCALHOST:3000", http.StatusNoContent},
		{"[::1]:3000", http.StatusNoContent},
		{"localhost", http.StatusNoContent},
		{"evil.example:3000", http.StatusForbidden},
		{"127.0.0.1.evil.example", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = tt.host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("Host %q: status = %d, want %d", tt.host, rec.Code, tt.want)
		}
	}
}

func TestSameOriginMiddleware(t *testing.T) {
	h := SameOriginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "no browser headers", want: http.StatusNoContent},
		{name: "typed into the address bar", header: map[string]string{"Sec-Fetch-Site": "none"}, want: http.StatusNoContent},
		{name: "same origin", header: map[string]string{"Sec-Fetch-Site": "same-origin", "Origin": "http://127.0.0.1:3000"}, want: http.StatusNoContent},
		{name: "same origin referer", header: map[string]string{"Referer": "http://127.0.0.1:3000/login"}, want: http.StatusNoContent},
		{name: "cross site", header: map[string]string{"Sec-Fetch-Site": "cross-site"}, want: http.StatusForbidden},
		{name: "other port", header: map[string]string{"Origin": "http://127.0.0.1:8080"}, want: http.StatusForbidden},
		{name: "other host", header: map[string]string{"Origin": "http://localhost:3000"}, want: http.StatusForbidden},
		{name: "null origin", header: map[string]string{"Origin": "null"}, want: http.StatusForbidden},
		{name: "file referer", header: map[string]string{"Referer": "file:///tmp/x.html"}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/logout", nil)
			req.Host = "127.0.0.1:3000"
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
