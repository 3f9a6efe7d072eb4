package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"loanwise/internal/log"
	"loanwise/internal/middleware/ratelimit"
	"loanwise/internal/middleware/security"
	"loanwise/internal/middleware/trace"
	"loanwise/internal/services"
)

const defaultMaxBodyBytes = 1 << 20

// Config tunes the server's middleware.
type Config struct {
	Addr              string
	RequestsPerMinute int
	RateLimitBurst    int
	MaxBodyBytes      int64
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed, in
	// addition to the private ranges.
	TrustedProxies []string
}

// Deps are the services the handlers delegate to. Ready is probed by /readyz
// and may be nil.
type Deps struct {
	Loans     *services.LoanService
	Dashboard *services.DashboardService
	Profiles  *services.ProfileService
	Ready     func(context.Context) error
}

type Server struct {
	http.Server
	deps      Deps
	logger    *log.Logger
	validator *requestValidator
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rlCfg := ratelimit.DefaultConfig()
	if cfg.RequestsPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.RateLimitBurst > 0 {
		rlCfg.Burst = cfg.RateLimitBurst
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	s := &Server{
		deps:      deps,
		logger:    logger,
		validator: newRequestValidator(),
		limiter:   ratelimit.NewLimiter(rlCfg),
		detector:  security.NewDetector(),
		now:       time.Now,
	}
	s.started = s.now()
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/calculator/emi", s.handleCalculateEMI)
	api.HandleFunc("POST /api/calculator/schedule", s.handleCalculateSchedule)
	api.HandleFunc("POST /api/calculator/compare", s.handleCalculateCompare)

	api.HandleFunc("POST /api/users/{userID}/loans", s.handleCreateLoan)
	api.HandleFunc("GET /api/users/{userID}/loans", s.handleListLoans)
	api.HandleFunc("GET /api/users/{userID}/portfolio", s.handlePortfolio)
	api.HandleFunc("GET /api/users/{userID}/debt-health", s.handleDebtHealth)
	api.HandleFunc("GET /api/users/{userID}/profile", s.handleGetProfile)
	api.HandleFunc("PUT /api/users/{userID}/profile", s.handlePutProfile)

	api.HandleFunc("GET /api/loans/{loanID}", s.handleGetLoan)
	api.HandleFunc("GET /api/loans/{loanID}/schedule", s.handleLoanSchedule)
	api.HandleFunc("GET /api/loans/{loanID}/compare", s.handleLoanCompare)
	api.HandleFunc("POST /api/loans/{loanID}/payments", s.handleApplyPayment)
	api.HandleFunc("GET /api/loans/{loanID}/payments", s.handleListPayments)
	api.HandleFunc("POST /api/loans/{loanID}/default", s.handleMarkDefaulted)
	api.HandleFunc("POST /api/loans/{loanID}/recalculate", s.handleRecalculate)

	var apiHandler http.Handler = api
	apiHandler = security.BodyLimit(maxBody)(apiHandler)
	apiHandler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(apiHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.HandleFunc("GET /metrics", s.handleMetrics)
	root.Handle("/api/", apiHandler)

	var handler http.Handler = root
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error:     "storage unavailable",
				Code:      "not_ready",
				RequestID: trace.GetRequestID(r.Context()),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:     "too many requests",
		Code:      "rate_limited",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
