package guard

import (
	"strings"
	"testing"
)

func TestRoutes_OptionsFor(t *testing.T) {
	r := DefaultRoutes()
	tests := []struct {
		path          string
		guarded       bool
		requireModel  bool
		requireClient bool
	}{
		{"/", false, false, false},
		{"/login", false, false, false},
		{"/panelista", false, false, false},
		{"/panel", true, false, false},
		{"/panel/", true, false, false},
		{"/panel/dashboard", true, true, false},
		{"/panel/dashboard/stats", true, true, false},
		{"/panel/cliente", true, false, true},
		{"/panel/fotos", true, false, false},
	}
	for _, tt := range tests {
		opts, ok := r.OptionsFor(tt.path)
		if ok != tt.guarded {
			t.Errorf("OptionsFor(%q) guarded = %v, want %v", tt.path, ok, tt.guarded)
			continue
		}
		if !ok {
			continue
		}
		if opts.RequireModel != tt.requireModel || opts.RequireClient != tt.requireClient {
			t.Errorf("OptionsFor(%q) = %+v", tt.path, opts)
		}
		if opts.RedirectTo != r.Login || !opts.WithNext {
			t.Errorf("OptionsFor(%q) login settings = %+v", tt.path, opts)
		}
		if err := opts.Validate(); err != nil {
			t.Errorf("OptionsFor(%q).Validate() error = %v", tt.path, err)
		}
	}
}

func TestRoutes_Home(t *testing.T) {
	r := DefaultRoutes()
	if got := r.Home(true); got != "/panel/dashboard" {
		t.Errorf("Home(true) = %q", got)
	}
	if got := r.Home(false); got != "/panel/cliente" {
		t.Errorf("Home(false) = %q", got)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "empty login path", opts: Options{}},
		{name: "absolute url", opts: Options{RedirectTo: "https://evil.example.com/login"}, wantErr: "RedirectTo"},
		{name: "scheme relative", opts: Options{RedirectTo: "//evil.example.com"}, wantErr: "RedirectTo"},
		{name: "both roles", opts: Options{RequireModel: true, RequireClient: true}, wantErr: "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
