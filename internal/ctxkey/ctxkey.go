// Package ctxkey holds context keys shared by the front server and the
// packages it calls into. It imports nothing from this module.
package ctxkey

// LoggerKey stores a *slog.Logger enriched with request fields.
type LoggerKey struct{}

// RequestIDKey stores the request ID string.
type RequestIDKey struct{}
