// Package http exposes the services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "pocketwise/internal/log"
	"pocketwise/internal/middleware/ratelimit"
	"pocketwise/internal/middleware/security"
	"pocketwise/internal/middleware/trace"
	"pocketwise/internal/services"
)

// Services are the operations the API serves.
type Services struct {
	Transactions  *services.TransactionService
	Analytics     *services.AnalyticsService
	Subscriptions *services.SubscriptionService
	Budget        *services.BudgetService
}

// Options tunes the server. Zero values pick defaults.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
	// Ready reports whether dependencies can serve traffic.
	Ready func(context.Context) error
	// Clock supplies "now" for lifecycle and budget evaluation.
	Clock func() time.Time
}

type Server struct {
	http.Server
	svc     Services
	ready   func(context.Context) error
	now     func() time.Time
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ips, err := security.NewIPExtractor(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:     svc,
		ready:   opts.Ready,
		now:     opts.Clock,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(opts.Logger, ips.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleRecentTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/wallet", s.handleWallet)
	mux.HandleFunc("POST /api/wallet/topup", s.handleTopUp)

	mux.HandleFunc("GET /api/analytics/trend", s.handleTrend)
	mux.HandleFunc("GET /api/analytics/categories", s.handleCategories)
	mux.HandleFunc("GET /api/analytics/groups", s.handleGroups)
	mux.HandleFunc("POST /api/analytics/export", s.handleExport)

	mux.HandleFunc("GET /api/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /api/subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("POST /api/subscriptions/{id}/active", s.handleSetSubscriptionActive)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.handleDeleteSubscription)

	mux.HandleFunc("GET /api/budget", s.handleBudgetStatus)
	mux.HandleFunc("PUT /api/budget", s.handleSetBudget)

	limited := s.limiter.Middleware(func(r *http.Request) string {
		if id := r.Header.Get(HeaderUserID); id != "" {
			return "user:" + id
		}
		return "ip:" + ips.ClientIP(r)
	}, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(limited)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and its limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// RequestMetrics exposes request counters from the tracing middleware.
func (s *Server) RequestMetrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
