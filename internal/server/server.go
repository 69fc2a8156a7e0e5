// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/perkloop/perkloop/internal/circuitbreaker"
	"github.com/perkloop/perkloop/internal/config"
	"github.com/perkloop/perkloop/internal/fraud"
	"github.com/perkloop/perkloop/internal/health"
	"github.com/perkloop/perkloop/internal/identity"
	"github.com/perkloop/perkloop/internal/logging"
	"github.com/perkloop/perkloop/internal/metrics"
	"github.com/perkloop/perkloop/internal/notification"
	"github.com/perkloop/perkloop/internal/payments"
	"github.com/perkloop/perkloop/internal/purchase"
	"github.com/perkloop/perkloop/internal/ratelimit"
	"github.com/perkloop/perkloop/internal/realtime"
	"github.com/perkloop/perkloop/internal/referral"
	"github.com/perkloop/perkloop/internal/reward"
	"github.com/perkloop/perkloop/internal/security"
	"github.com/perkloop/perkloop/internal/traces"
	"github.com/perkloop/perkloop/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg            *config.Config
	db             *sql.DB // nil if using in-memory
	referrers      referral.Store
	resolver       *referral.Resolver
	purchases      purchase.Store
	fraudStore     fraud.Store
	engine         *fraud.Engine
	purchaseSvc    *purchase.Service
	rewardSvc      *reward.Service
	notifier       *notification.Dispatcher
	identity       fraud.IdentityProvider
	hub            *realtime.Hub
	rateLimiter    *ratelimit.Limiter
	healthReg      *health.Registry
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	tracesShutdown func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithIdentityProvider sets a custom identity provider (for testing)
func WithIdentityProvider(p fraud.IdentityProvider) Option {
	return func(s *Server) {
		s.identity = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	// Apply options first (may set identity/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Tracing (no-op when no endpoint is configured)
	tracesShutdown, err := traces.Init(context.Background(), cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracesShutdown = tracesShutdown

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.referrers = referral.NewPostgresStore(db)
		s.purchases = purchase.NewPostgresStore(db)
		s.fraudStore = fraud.NewPostgresStore(db)
		s.rewardSvc = reward.NewService(reward.NewPostgresStore(db), s.logger)
		s.notifier = notification.NewDispatcher(notification.NewPostgresStore(db), notification.NewLogSender(s.logger), s.logger)
		s.healthReg.Register("database", health.DBChecker("database", db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.referrers = referral.NewMemoryStore()
		s.purchases = purchase.NewMemoryStore()
		s.fraudStore = fraud.NewMemoryStore()
		s.rewardSvc = reward.NewService(reward.NewMemoryStore(), s.logger)
		s.notifier = notification.NewDispatcher(notification.NewMemoryStore(), notification.NewLogSender(s.logger), s.logger)
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.resolver = referral.NewResolver(s.referrers)

	// Identity provider: hosted when configured, in-process stub otherwise
	if s.identity == nil {
		if cfg.IdentityProviderURL != "" {
			if err := security.ValidateEndpointURL(cfg.IdentityProviderURL); err != nil {
				return nil, fmt.Errorf("unsafe identity provider URL: %w", err)
			}
			// Breaker keeps a dead provider from slowing every validation;
			// tripped lookups degrade to the unverified-identity signal.
			provider := identity.NewHTTPProvider(cfg.IdentityProviderURL, cfg.IdentityTimeout)
			s.identity = identity.WithBreaker(provider, circuitbreaker.New(5, 30*time.Second))
			s.logger.Info("using hosted identity provider", "url", cfg.IdentityProviderURL)
		} else {
			s.identity = identity.NewMemoryProvider()
			s.logger.Info("using in-memory identity provider (all customers unverified)")
		}
	}

	// Fraud engine
	engineCfg := fraud.DefaultConfig()
	engineCfg.MinPurchaseAmount = cfg.MinPurchaseAmount
	engineCfg.RejectThreshold = cfg.RejectThreshold
	engineCfg.IPAllTimeLimit = cfg.IPAllTimeLimit
	engineCfg.IPDailyLimit = cfg.IPDailyLimit
	engineCfg.IdentityTimeout = cfg.IdentityTimeout
	s.engine = fraud.NewEngine(engineCfg, s.resolver, s.purchases, s.identity).
		WithStore(s.fraudStore).
		WithLogger(s.logger)
	s.logger.Info("fraud engine configured",
		"min_purchase", engineCfg.MinPurchaseAmount,
		"reject_threshold", engineCfg.RejectThreshold,
		"fail_mode", cfg.FraudFailMode,
	)

	// Realtime hub for WebSocket streaming
	s.hub = realtime.NewHub(s.logger)

	// Purchase orchestration
	s.purchaseSvc = purchase.NewService(cfg, s.engine, s.purchases, s.resolver, s.rewardSvc, s.notifier, s.logger).
		WithHub(s.hub)
	if cfg.StripeAPIKey != "" {
		s.purchaseSvc = s.purchaseSvc.WithVerifier(payments.NewStripeVerifier(cfg.StripeAPIKey))
		s.logger.Info("payment verification enabled")
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket stream of fraud decisions and review events
	s.router.GET("/v1/fraud/stream", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	referralHandler := referral.NewHandler(s.referrers, s.resolver)
	purchaseHandler := purchase.NewHandler(s.purchaseSvc)
	rewardHandler := reward.NewHandler(s.rewardSvc).WithHub(s.hub)
	fraudHandler := fraud.NewHandler(s.fraudStore)

	// PUBLIC ROUTES
	referralHandler.RegisterRoutes(v1)
	purchaseHandler.RegisterRoutes(v1)
	rewardHandler.RegisterRoutes(v1)

	// ADMIN ROUTES (shared-secret header)
	admin := v1.Group("/admin")
	admin.Use(security.AdminMiddleware(s.cfg.AdminSecret))
	referralHandler.RegisterAdminRoutes(admin)
	rewardHandler.RegisterAdminRoutes(admin)
	fraudHandler.RegisterAdminRoutes(admin)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Perkloop",
		"description": "Referral validation and fraud scoring for purchase flows",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// DB stats for the metrics endpoint
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Flush any buffered trace spans
	if s.tracesShutdown != nil {
		if err := s.tracesShutdown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
