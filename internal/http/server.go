// Package http exposes the ledger engine over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dompet/internal/aggregate"
	"dompet/internal/budget"
	"dompet/internal/cache"
	"dompet/internal/categorize"
	"dompet/internal/log"
	"dompet/internal/middleware/ratelimit"
	"dompet/internal/middleware/security"
	"dompet/internal/middleware/trace"
	"dompet/internal/ports"
	"dompet/internal/services"
)

// Deps are the collaborators of a Server. Store is required; the rest
// default when zero.
type Deps struct {
	Store       ports.Store
	Publisher   services.Publisher
	Categorizer *categorize.Engine
	Logger      *log.Logger
	Now         services.Clock

	DashboardMonths int
	CacheTTL        time.Duration
	CacheSize       int
}

type Server struct {
	http.Server

	store     ports.Store
	publisher services.Publisher
	logger    *log.Logger
	now       services.Clock
	months    int

	transactions *services.TransactionService
	recurring    *services.RecurringEngine
	goals        *services.GoalService
	debts        *services.DebtService
	budgets      *budget.Tracker
	categorizer  *categorize.Engine

	dashboards *cache.Memo[aggregate.Dashboard]
	analytics  *cache.Memo[aggregate.Analytics]
	caches     *cache.Manager

	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter
	clientIPs   *security.ClientIPResolver

	shutdownOnce sync.Once
}

// NewServer wires the services over deps.Store and registers the routes.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	categorizer := deps.Categorizer
	if categorizer == nil {
		var err error
		if categorizer, err = categorize.LoadEmbedded(); err != nil {
			logger.Warn("Built-in categorization rules unavailable", "error", err)
		}
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	size := deps.CacheSize
	if size <= 0 {
		size = 128
	}

	dashCache := cache.NewLRUCache[aggregate.Dashboard](size, ttl)
	analyticsCache := cache.NewLRUCache[aggregate.Analytics](size, ttl)
	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(dashCache)
	caches.Register(analyticsCache)
	caches.StartCleanup(10 * time.Minute)

	slogger := logger.Logger
	s := &Server{
		store:        deps.Store,
		publisher:    deps.Publisher,
		logger:       logger,
		now:          now,
		months:       deps.DashboardMonths,
		transactions: services.NewTransactionService(deps.Store, deps.Publisher, now, logger.WithComponent(log.ComponentLedger).Logger),
		recurring:    services.NewRecurringEngine(deps.Store, deps.Publisher, now, logger.WithComponent(log.ComponentRecurring).Logger),
		goals:        services.NewGoalService(deps.Store, now, slogger),
		debts:        services.NewDebtService(deps.Store, now, slogger),
		budgets:      budget.NewTracker(deps.Store, logger.WithComponent(log.ComponentBudget).Logger),
		categorizer:  categorizer,
		dashboards:   cache.NewMemo[aggregate.Dashboard](dashCache),
		analytics:    cache.NewMemo[aggregate.Analytics](analyticsCache),
		caches:       caches,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		clientIPs:    security.NewClientIPResolver(),
	}
	s.tracer = trace.NewMiddleware(logger, s.clientIPs.ClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	limit := s.rateLimiter.Middleware(s.clientIPs.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(security.Headers(limit(s.invalidateOnWrite(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/stats", s.handleTransactionStats)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/categorize", s.handleSuggestCategory)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/reconciliation", s.handleReconciliation)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/balance-sheet", s.handleBalanceSheet)
	mux.HandleFunc("GET /api/categories", s.handleCategoryBreakdown)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	mux.HandleFunc("GET /api/budgets", s.handleBudgetReport)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/goals", s.handleGoalProgress)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/goals/{id}/contributions", s.handleListContributions)
	mux.HandleFunc("POST /api/goals/{id}/contributions", s.handleContribute)

	mux.HandleFunc("GET /api/debts", s.handleDebtProjections)
	mux.HandleFunc("POST /api/debts", s.handleCreateDebt)
	mux.HandleFunc("DELETE /api/debts/{id}", s.handleDeleteDebt)
	mux.HandleFunc("POST /api/debts/{id}/payments", s.handlePayDebt)
	mux.HandleFunc("POST /api/amortization", s.handleAmortization)

	mux.HandleFunc("GET /api/holdings", s.handlePortfolio)
	mux.HandleFunc("POST /api/holdings", s.handleCreateHolding)
	mux.HandleFunc("DELETE /api/holdings/{id}", s.handleDeleteHolding)

	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/pay", s.handleMarkPaid)
	mux.HandleFunc("POST /api/recurring/generate", s.handleGenerateDue)
	mux.HandleFunc("GET /api/bills", s.handleBills)
}

// InvalidateViews drops the cached dashboard and analytics views. Writes
// through this server call it; the reconciler calls it after fixing
// balances.
func (s *Server) InvalidateViews() {
	s.dashboards.Invalidate()
	s.analytics.Invalidate()
}

// invalidateOnWrite drops derived views after every successful write.
func (s *Server) invalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		if rw.statusCode < 400 {
			s.InvalidateViews()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics reports request and rate limiter counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.rateLimiter.GetMetrics()
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.caches.Stop(ctx)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	requests, limits := s.Metrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"requests":       requests.TotalRequests,
		"server_errors":  requests.ServerErrors,
		"rate_limited":   limits.Rejected,
		"active_clients": limits.Clients,
	})
}

// handleReady checks the store with a cheap read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.store.ListAccounts(ctx); err != nil {
		s.fail(w, r, "Readiness check failed", log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
