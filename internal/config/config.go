// Package config provides configuration types for vitrina.
//
// Configuration comes from vitrina.yaml and VITRINA_* environment
// variables. Every field has a default, so vitrina runs with no file at all
// against a backend on localhost.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Storage drivers.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
	// StorageNone disables persistence; the session store never hydrates.
	StorageNone = "none"
)

// Config is the top-level vitrina configuration.
type Config struct {
	// Backend configures the marketplace REST API.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Storage configures where the session is persisted between runs.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Server configures the front server and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Routes names the login page and the role panels.
	Routes RoutesConfig `yaml:"routes" mapstructure:"routes"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// BackendConfig configures the REST API client.
type BackendConfig struct {
	// BaseURL is the API root (e.g. "https://api.vitrina.example").
	// Defaults to "http://127.0.0.1:8000".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Endpoint paths, relative to BaseURL.
	TokenPath    string `yaml:"token_path" mapstructure:"token_path" validate:"omitempty,relpath"`
	RegisterPath string `yaml:"register_path" mapstructure:"register_path" validate:"omitempty,relpath"`
	IdentityPath string `yaml:"identity_path" mapstructure:"identity_path" validate:"omitempty,relpath"`
	LogoutPath   string `yaml:"logout_path" mapstructure:"logout_path" validate:"omitempty,relpath"`

	// Timeout bounds each API call (e.g. "10s"). Default: "10s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// LogoutTimeout bounds the background logout call. Default: "10s".
	LogoutTimeout string `yaml:"logout_timeout" mapstructure:"logout_timeout" validate:"omitempty,duration"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	// Driver is one of "file", "sqlite", "memory", "none". Default: "file".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"omitempty,storage_driver"`

	// Path is the session file or database. Defaults to
	// ~/.vitrina/session.json (file) or ~/.vitrina/vitrina.db (sqlite).
	Path string `yaml:"path" mapstructure:"path"`

	// Key is the record name within the storage. Default: "auth-storage".
	Key string `yaml:"key" mapstructure:"key"`
}

// ServerConfig configures the front server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:3000"
	// (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". Default: "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// StaticDir is the directory of the built front end. Optional.
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`

	// GuardWait bounds how long a guarded request waits for the session to
	// settle before it is answered 503. Default: "5s".
	GuardWait string `yaml:"guard_wait" mapstructure:"guard_wait" validate:"omitempty,duration"`

	// AllowedHosts lists extra host names accepted in the Host header.
	// Loopback names and the host of HTTPAddr are always accepted.
	AllowedHosts []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts" validate:"omitempty,dive,hostname|ip"`

	// APIPrefix is the path proxied to the backend. Default: "/api/".
	APIPrefix string `yaml:"api_prefix" mapstructure:"api_prefix" validate:"omitempty,relpath"`
}

// RoutesConfig names the front-end pages the guard knows about.
type RoutesConfig struct {
	Login      string `yaml:"login" mapstructure:"login" validate:"omitempty,relpath"`
	ModelHome  string `yaml:"model_home" mapstructure:"model_home" validate:"omitempty,relpath"`
	ClientHome string `yaml:"client_home" mapstructure:"client_home" validate:"omitempty,relpath"`
	Panel      string `yaml:"panel" mapstructure:"panel" validate:"omitempty,relpath"`
}

// TelemetryConfig configures trace and metric export.
type TelemetryConfig struct {
	// Enabled exports spans and metrics to stderr. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ServiceName is reported on every span. Default: "vitrina".
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:8000"
	}
	if c.Backend.TokenPath == "" {
		c.Backend.TokenPath = "/api/token/"
	}
	if c.Backend.RegisterPath == "" {
		c.Backend.RegisterPath = "/api/register/"
	}
	if c.Backend.IdentityPath == "" {
		c.Backend.IdentityPath = "/api/auth/check/"
	}
	if c.Backend.LogoutPath == "" {
		c.Backend.LogoutPath = "/api/logout/"
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "10s"
	}
	if c.Backend.LogoutTimeout == "" {
		c.Backend.LogoutTimeout = "10s"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageFile
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "auth-storage"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath(c.Storage.Driver)
	}

	// Bind to localhost only; exposing the front server is an explicit choice.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:3000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.GuardWait == "" {
		c.Server.GuardWait = "5s"
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = "/api/"
	}

	if c.Routes.Login == "" {
		c.Routes.Login = "/login"
	}
	if c.Routes.ModelHome == "" {
		c.Routes.ModelHome = "/panel/dashboard"
	}
	if c.Routes.ClientHome == "" {
		c.Routes.ClientHome = "/panel/cliente"
	}
	if c.Routes.Panel == "" {
		c.Routes.Panel = "/panel"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "vitrina"
	}
}

// defaultStoragePath returns the per-user location for a driver, or "" when
// the driver keeps nothing on disk.
func defaultStoragePath(driver string) string {
	var name string
	switch driver {
	case StorageFile:
		name = "session.json"
	case StorageSQLite:
		name = "vitrina.db"
	default:
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".vitrina", name)
}

// BackendTimeout returns Backend.Timeout, or 0 if unset or invalid.
func (c *Config) BackendTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout)
}

// LogoutTimeout returns Backend.LogoutTimeout, or 0 if unset or invalid.
func (c *Config) LogoutTimeout() time.Duration {
	return parseDuration(c.Backend.LogoutTimeout)
}

// GuardWait returns Server.GuardWait, or 0 if unset or invalid.
func (c *Config) GuardWait() time.Duration {
	return parseDuration(c.Server.GuardWait)
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
