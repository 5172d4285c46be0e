package guard

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DefaultLoginPath is where unauthenticated visitors are sent.
const DefaultLoginPath = "/login"

// Options configure the guard of one page.
type Options struct {
	// RedirectTo is the login page. Default "/login".
	RedirectTo string `validate:"omitempty,relpath"`
	// WithNext appends the current location as a "next" query parameter
	// to the login redirect. Default true.
	WithNext bool
	// RequireModel restricts the page to model accounts.
	RequireModel bool
	// RequireClient restricts the page to client accounts.
	RequireClient bool `validate:"excluded_if=RequireModel true"`
}

// DefaultOptions returns the options of a page that only needs a session.
func DefaultOptions() Options {
	return Options{
		RedirectTo: DefaultLoginPath,
		WithNext:   true,
	}
}

// loginPath returns RedirectTo or the default.
func (o Options) loginPath() string {
	if o.RedirectTo == "" {
		return DefaultLoginPath
	}
	return o.RedirectTo
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func optionsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
			return IsRelativePath(fl.Field().String())
		})
	})
	return validate
}

// Validate checks that RedirectTo is a same-origin path and that at most one
// role requirement is set.
func (o Options) Validate() error {
	err := optionsValidator().Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "relpath":
			msgs = append(msgs, fmt.Sprintf("%s must be a path starting with a single '/'", fe.Field()))
		case "excluded_if":
			msgs = append(msgs, "RequireModel and RequireClient are mutually exclusive")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
