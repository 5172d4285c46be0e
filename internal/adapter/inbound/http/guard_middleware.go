package http

import (
	"context"
	"net/http"
	"time"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
)

// DefaultGuardWait bounds how long a panel request waits for a decision.
const DefaultGuardWait = 5 * time.Second

// GuardMiddleware gates the panel pages of routes. Every request mounts a
// guard on src and waits up to wait for it to settle:
//
//   - Allow serves the page through next.
//   - A redirect answers 302 to its target.
//   - Still Pending answers 503 with Retry-After and no body, the server
//     counterpart of rendering nothing.
//
// Requests outside the panel pass through untouched. metrics may be nil.
func GuardMiddleware(src guard.StateSource, routes guard.Routes, wait time.Duration, metrics *Metrics) func(http.Handler) http.Handler {
	if wait <= 0 {
		wait = DefaultGuardWait
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opts, guarded := routes.OptionsFor(r.URL.Path)
			if !guarded {
				next.ServeHTTP(w, r)
				return
			}
			logger := LoggerFromContext(r.Context())

			m := guard.NewMount(r.Context(), src, r.URL.RequestURI(), opts, routes, logger)
			defer m.Unmount()

			ctx, cancel := context.WithTimeout(r.Context(), wait)
			defer cancel()
			d, err := m.Wait(ctx)
			if err != nil {
				logger.Debug("guard did not settle", "path", r.URL.Path, "error", err)
			}
			if metrics != nil {
				metrics.GuardDecisions.WithLabelValues(d.Kind.String()).Inc()
			}

			switch d.Kind {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.RedirectToLogin, guard.RedirectToRole:
				logger.Debug("guard redirect", "path", r.URL.Path, "decision", d.String())
				http.Redirect(w, r, d.Target, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
	}
}
