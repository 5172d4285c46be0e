package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vitrina-app/vitrina/internal/domain/guard"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Server is the vitrina front server.
type Server struct {
	store  guard.StateSource
	flows  AuthFlows
	logger *slog.Logger

	addr         string
	allowedHosts []string
	routes       guard.Routes
	guardWait    time.Duration
	staticDir    string
	version      string

	apiPrefix    string
	apiBackend   *url.URL
	apiTransport http.RoundTripper

	registry *prometheus.Registry
	metrics  *Metrics

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default: 127.0.0.1:3000.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAllowedHosts adds host names, besides loopback and the host of the
// listen address, that requests may carry in Host.
func WithAllowedHosts(hosts ...string) Option {
	return func(s *Server) {
		s.allowedHosts = append(s.allowedHosts, hosts...)
	}
}

// WithRoutes sets the route table of the guard.
func WithRoutes(routes guard.Routes) Option {
	return func(s *Server) {
		s.routes = routes
	}
}

// WithGuardWait bounds how long a panel request waits for a decision.
func WithGuardWait(d time.Duration) Option {
	return func(s *Server) {
		s.guardWait = d
	}
}

// WithStaticDir serves the front-end bundle from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithAPIProxy forwards requests under prefix to backend through transport.
func WithAPIProxy(prefix string, backend *url.URL, transport http.RoundTripper) Option {
	return func(s *Server) {
		s.apiPrefix = prefix
		s.apiBackend = backend
		s.apiTransport = transport
	}
}

// WithMetrics shares a registry and metrics already observing the store.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(s *Server) {
		s.registry = reg
		s.metrics = m
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewServer creates a front server over the shared session store.
func NewServer(store guard.StateSource, flows AuthFlows, opts ...Option) *Server {
	s := &Server{
		store:     store,
		flows:     flows,
		logger:    slog.Default(),
		addr:      "127.0.0.1:3000",
		routes:    guard.DefaultRoutes(),
		guardWait: DefaultGuardWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry()
		s.metrics = NewMetrics(s.registry)
	}
	return s
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the routed handler with its middleware chain:
// tracing -> Metrics -> RequestID -> HostCheck -> mux, with the guard around
// static pages and the same-origin check around forms and the API proxy.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", NewHealthChecker(s.store, s.version).Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	if s.flows != nil {
		NewFormHandler(s.flows).Register(mux, s.routes.Login)
	}
	if s.apiBackend != nil {
		proxy := NewAPIProxy(s.apiBackend, s.apiTransport, s.logger)
		mux.Handle(s.apiPrefix, SameOriginMiddleware()(proxy))
	}
	mux.Handle("/", GuardMiddleware(s.store, s.routes, s.guardWait, s.metrics)(StaticHandler(s.staticDir)))

	var handler http.Handler = mux
	handler = HostCheckMiddleware(AllowedHosts(s.addr, s.allowedHosts...))(handler)
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = MetricsMiddleware(s.metrics)(handler)
	return otelhttp.NewHandler(handler, "vitrina")
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting front server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down front server")
		err := s.shutdown()
		<-errCh
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	s.logger.Info("front server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	return s.shutdown()
}
