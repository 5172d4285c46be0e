package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
)

// RegisterCustomValidators registers vitrina-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"relpath":        validateRelPath,
		"duration":       validateDuration,
		"storage_driver": validateStorageDriver,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateRelPath accepts same-origin paths only.
func validateRelPath(fl validator.FieldLevel) bool {
	return guard.IsRelativePath(fl.Field().String())
}

// validateDuration accepts positive Go durations ("500ms", "10s").
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

func validateStorageDriver(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case StorageFile, StorageSQLite, StorageMemory, StorageNone:
		return true
	default:
		return false
	}
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateStoragePath(); err != nil {
		return err
	}
	return c.validateRoutes()
}

// validateStoragePath requires a path for the drivers that write to disk.
func (c *Config) validateStoragePath() error {
	switch c.Storage.Driver {
	case StorageFile, StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	}
	return nil
}

// validateRoutes keeps both role homes inside the panel, where the guard
// applies, and apart from each other.
func (c *Config) validateRoutes() error {
	r := c.GuardRoutes()
	if r.ModelHome == r.ClientHome {
		return errors.New("routes: model_home and client_home must differ")
	}
	for name, p := range map[string]string{"model_home": r.ModelHome, "client_home": r.ClientHome} {
		if !r.InPanel(p) {
			return fmt.Errorf("routes.%s %q must be under routes.panel %q", name, p, r.PanelPrefix)
		}
	}
	if r.InPanel(r.Login) {
		return fmt.Errorf("routes.login %q must not be under routes.panel %q", r.Login, r.PanelPrefix)
	}
	return nil
}

// GuardRoutes returns the route table for the guard.
func (c *Config) GuardRoutes() guard.Routes {
	return guard.Routes{
		Login:       c.Routes.Login,
		ModelHome:   c.Routes.ModelHome,
		ClientHome:  c.Routes.ClientHome,
		PanelPrefix: c.Routes.Panel,
	}
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "hostname|ip":
		return fmt.Sprintf("%s must be a host name or IP address", field)
	case "relpath":
		return fmt.Sprintf("%s must be a path starting with a single '/'", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration such as \"10s\"", field)
	case "storage_driver":
		return fmt.Sprintf("%s must be one of: file sqlite memory none", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
