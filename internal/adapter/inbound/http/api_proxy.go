package http

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewAPIProxy forwards requests to backend unchanged in path and query.
// transport is expected to be the backend client's authorizing transport, so
// the session's bearer token is attached at send time unless the browser
// sent its own Authorization header.
func NewAPIProxy(backend *url.URL, transport http.RoundTripper, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.SetXForwarded()
			// The browser's cookies belong to this server, not the API.
			pr.Out.Header.Del("Cookie")
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			LoggerFromContext(r.Context()).Error("api proxy upstream error", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, FormError{Message: "backend unavailable"})
		},
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
