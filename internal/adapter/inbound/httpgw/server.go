package httpgw

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ledger-Gate/ledgergate/internal/adapter/outbound/memory"
	"github.com/Ledger-Gate/ledgergate/internal/domain/route"
	"github.com/Ledger-Gate/ledgergate/internal/service"
)

// Server is the inbound adapter that fronts the application with the
// admission pipeline. Every request flows through the middleware stack;
// admitted requests reach the analyze endpoint or the upstream app.
type Server struct {
	admission     *service.AdmissionService
	routes        *route.Classifier
	server        *http.Server
	addr          string
	sessionCookie string
	upstreamURL   string
	analyze       *AnalyzeHandler
	rateLimiter   *memory.TokenBucketLimiter
	auditService  *service.AuditService
	healthChecker *HealthChecker
	logger        *slog.Logger
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithSessionCookie sets the session cookie name read for credentials.
func WithSessionCookie(name string) Option {
	return func(s *Server) {
		s.sessionCookie = name
	}
}

// WithUpstream sets the application origin admitted requests are proxied to.
// When empty, only the gateway's own endpoints are served.
func WithUpstream(rawURL string) Option {
	return func(s *Server) {
		s.upstreamURL = rawURL
	}
}

// WithAnalyzeHandler mounts the financial-analysis endpoint at /api/analyze.
func WithAnalyzeHandler(h *AnalyzeHandler) Option {
	return func(s *Server) {
		s.analyze = h
	}
}

// WithRateLimiter exposes the limiter's key count for health and metrics.
func WithRateLimiter(l *memory.TokenBucketLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = l
	}
}

// WithAuditService exposes audit channel stats for health and metrics.
func WithAuditService(a *service.AuditService) Option {
	return func(s *Server) {
		s.auditService = a
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the gateway server around the admission service.
func NewServer(admissionSvc *service.AdmissionService, routes *route.Classifier, opts ...Option) *Server {
	s := &Server{
		admission:     admissionSvc,
		routes:        routes,
		addr:          "127.0.0.1:8080",
		sessionCookie: DefaultSessionCookie,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins accepting connections. It blocks until the context is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg)
	if s.rateLimiter != nil {
		RegisterKeyGauge(reg, s.rateLimiter.Size)
	}
	if s.auditService != nil {
		RegisterAuditDropCounter(reg, s.auditService.DroppedRecords)
	}

	appHandler, err := s.buildAppHandler()
	if err != nil {
		return err
	}

	// Middleware order (outermost first):
	// 1. RequestID - correlation ID plus enriched logger
	// 2. RealIP - client IP from proxy headers
	// 3. Credentials - session/bearer extraction and identity key
	// 4. Admission - the guard chain; terminal decisions stop here
	// 5. App - analyze endpoint or upstream proxy
	guarded := AdmissionMiddleware(s.admission, s.routes, metrics)(appHandler)
	guarded = CredentialsMiddleware(s.sessionCookie)(guarded)
	guarded = RealIPMiddleware(guarded)
	handler := RequestIDMiddleware(s.logger)(guarded)

	mux := http.NewServeMux()
	if s.healthChecker != nil {
		mux.Handle("/health", s.healthChecker.Handler())
	} else {
		mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		}))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/", handler)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down gateway server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// buildAppHandler assembles what admitted requests are served by: the
// analyze endpoint and, when configured, the upstream application.
func (s *Server) buildAppHandler() (http.Handler, error) {
	mux := http.NewServeMux()
	if s.analyze != nil {
		mux.Handle("/api/analyze", s.analyze)
	}

	if s.upstreamURL != "" {
		target, err := url.Parse(s.upstreamURL)
		if err != nil {
			return nil, err
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			LoggerFromContext(r.Context()).Error("upstream proxy error", "error", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}
		mux.Handle("/", proxy)
	} else {
		mux.Handle("/", http.NotFoundHandler())
	}
	return mux, nil
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("gateway server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
