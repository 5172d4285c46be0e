package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for vitrina.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the binary itself, which
// shares the base name, is never read as configuration.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Without search paths ReadInConfig returns ConfigFileNotFoundError,
		// which callers treat as "defaults and env only".
		viper.SetConfigName("vitrina")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: VITRINA_BACKEND_BASE_URL
	viper.SetEnvPrefix("VITRINA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".vitrina"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "vitrina"))
		}
	} else {
		paths = append(paths, "/etc/vitrina")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths returns the first vitrina.yaml or vitrina.yml found
// in paths, or "".
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "vitrina"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// envKeys lists every scalar key that can be overridden from the environment.
// AutomaticEnv alone does not reach keys absent from the file.
var envKeys = []string{
	"backend.base_url",
	"backend.token_path",
	"backend.register_path",
	"backend.identity_path",
	"backend.logout_path",
	"backend.timeout",
	"backend.logout_timeout",

	"storage.driver",
	"storage.path",
	"storage.key",

	"server.http_addr",
	"server.log_level",
	"server.static_dir",
	"server.guard_wait",
	"server.api_prefix",
	"server.allowed_hosts",

	"routes.login",
	"routes.model_home",
	"routes.client_home",
	"routes.panel",

	"telemetry.enabled",
	"telemetry.service_name",
}

func bindNestedEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration and applies defaults but does not
// validate. Callers apply CLI flag overrides, then call Validate.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
