package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MsgNoValidToken is shown when a login response carries no usable access token.
const MsgNoValidToken = "No se recibió un token válido"

// Sentinel errors for use with errors.Is().
var (
	// ErrAuth matches every *AuthError.
	ErrAuth = errors.New("authentication rejected")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrTransientIdentity matches every *TransientIdentityError.
	ErrTransientIdentity = errors.New("identity check unavailable")

	// ErrUnauthorized is returned when the identity endpoint rejects the token.
	ErrUnauthorized = errors.New("access token rejected")

	// ErrTokenExpired is returned when the access token is expired locally.
	ErrTokenExpired = errors.New("access token expired")
)

// AuthError is returned when login or registration is rejected by the
// backend, or when a login response is malformed.
type AuthError struct {
	// Status is the HTTP status of the backend response, 0 if none.
	Status int
	// Message is the text to show the user, taken from the backend when present.
	Message string
	// Payload is the backend error body, untouched.
	Payload json.RawMessage
}

// Error returns the user-facing message.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("authentication rejected (HTTP %d)", e.Status)
	}
	return ErrAuth.Error()
}

// Is supports errors.Is(err, ErrAuth).
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// ValidationError carries field-level registration errors exactly as the
// backend returned them.
type ValidationError struct {
	Status int
	// Fields maps a field name to its messages. Non-field errors use the
	// backend's own key (e.g. "non_field_errors").
	Fields map[string][]string
	// Payload is the backend error body, untouched.
	Payload json.RawMessage
}

// Error joins the field messages in a stable form.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), formatFields(e.Fields))
}

// Is supports errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransientIdentityError is a network or 5xx failure of the identity
// endpoint. CheckAuth recovers it as "not authenticated".
type TransientIdentityError struct {
	Status int
	Cause  error
}

// Error describes the failure.
func (e *TransientIdentityError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("identity check unavailable: %v", e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("identity check unavailable (HTTP %d)", e.Status)
	default:
		return ErrTransientIdentity.Error()
	}
}

// Unwrap returns the underlying cause.
func (e *TransientIdentityError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ErrTransientIdentity).
func (e *TransientIdentityError) Is(target error) bool {
	return target == ErrTransientIdentity
}

func formatFields(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fields[k], ", "))
	}
	return strings.Join(parts, "; ")
}
