// Package http is the vitrina front server.
//
// It serves the built front end from a static directory and decides, per
// request, whether a panel page may be served. Panel pages are gated by the
// route guard: each request mounts a guard on the shared session store and
// waits, up to a bound, for its decision.
//
// # Usage
//
//	srv := http.NewServer(store, authService,
//	    http.WithAddr("127.0.0.1:3000"),
//	    http.WithRoutes(routes),
//	    http.WithAPIProxy("/api/", backendURL, backendClient.HTTPClient().Transport),
//	    http.WithLogger(logger),
//	)
//	err := srv.Start(ctx)
//
// # Endpoints
//
//	GET  /panel/...  - guarded pages; 302 to login or to the role home, 503 while the session settles
//	POST /login      - form login; 303 to the next page or the role home
//	POST /register   - form registration followed by login
//	POST /logout     - clears the session; 303 to the login page
//	ANY  /api/...    - proxied to the backend with the session's bearer token
//	GET  /healthz    - session store lifecycle as JSON
//	GET  /metrics    - Prometheus metrics
//	GET  /...        - static files; unknown paths fall back to index.html
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. otelhttp - server span, a no-op unless tracing is enabled
//  2. MetricsMiddleware - request count and duration
//  3. RequestIDMiddleware - X-Request-ID and the request logger
//  4. HostCheckMiddleware - Host must be loopback, the listen host, or allowed
//  5. SameOriginMiddleware - forms and /api/ only
//  6. GuardMiddleware - panel pages only
package http
