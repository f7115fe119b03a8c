// Package http serves the operational API: liveness, readiness and
// read-only chat summaries.
package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	tlog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the server to the application services.
type Config struct {
	Addr           string
	Store          Pinger
	Settings       *services.Settings
	Journal        *services.Journal
	Token          string   // API routes are not mounted when empty
	TrustedProxies []string // CIDRs whose X-Forwarded-For is believed
	RateLimit      int      // API requests per client per minute
	ReportLimit    int
	Logger         *tlog.Logger
	Now            func() time.Time
}

type Server struct {
	http.Server
	store       Pinger
	settings    *services.Settings
	journal     *services.Journal
	token       string
	reportLimit int
	now         func() time.Time
	logger      *tlog.Logger

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// It fails only on a malformed trusted proxy CIDR.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = tlog.New(tlog.Config{Component: tlog.ComponentHTTP})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	reportLimit := cfg.ReportLimit
	if reportLimit <= 0 {
		reportLimit = 10
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s := &Server{
		store:       cfg.Store,
		settings:    cfg.Settings,
		journal:     cfg.Journal,
		token:       cfg.Token,
		reportLimit: reportLimit,
		now:         now,
		logger:      logger,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimit}),
		tracer:      trace.NewMiddleware(detector.ExtractClientIP, logger.WithComponent(tlog.ComponentTrace)),
		detector:    detector,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.token != "" {
		limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		})
		mux.Handle("GET /api/chats/{chatID}/summary", limited(s.requireToken(http.HandlerFunc(s.handleSummary))))
	} else {
		logger.Info("OPS_API_TOKEN not set, API routes disabled")
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(detector.Middleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// requireToken checks the bearer token in constant time.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			tlog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected API request",
				tlog.FieldPath, r.URL.Path)
			UnauthorizedError().Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
