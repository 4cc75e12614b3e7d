// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/accessguard/internal/auth"
	"github.com/mbd888/accessguard/internal/baseline"
	"github.com/mbd888/accessguard/internal/config"
	"github.com/mbd888/accessguard/internal/engine"
	"github.com/mbd888/accessguard/internal/enrich"
	"github.com/mbd888/accessguard/internal/event"
	"github.com/mbd888/accessguard/internal/health"
	"github.com/mbd888/accessguard/internal/idgen"
	"github.com/mbd888/accessguard/internal/logging"
	"github.com/mbd888/accessguard/internal/metrics"
	"github.com/mbd888/accessguard/internal/ratelimit"
	"github.com/mbd888/accessguard/internal/realtime"
	"github.com/mbd888/accessguard/internal/retry"
	"github.com/mbd888/accessguard/internal/security"
	"github.com/mbd888/accessguard/internal/traces"
	"github.com/mbd888/accessguard/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	engine        *engine.Engine
	baselines     baseline.Store
	events        event.Store
	realtimeHub   *realtime.Hub
	healthReg     *health.Registry
	rateLimiter   *ratelimit.Limiter
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	shutdownTrace func(context.Context) error
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

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

// WithStores injects storage (for testing)
func WithStores(baselines baseline.Store, events event.Store) Option {
	return func(s *Server) {
		s.baselines = baselines
		s.events = events
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	// Apply options first (may set stores/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if s.baselines == nil || s.events == nil {
		if cfg.DatabaseURL != "" {
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open database: %w", err)
			}

			// Configure connection pool
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)

			// Test connection; a database restarting alongside us is the
			// common cause of first-ping failures, so back off and retry.
			if err := retry.Do(ctx, 3, 500*time.Millisecond, func() error {
				return db.PingContext(ctx)
			}); err != nil {
				return nil, fmt.Errorf("failed to connect to database: %w", err)
			}

			s.db = db
			s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

			baselineStore := baseline.NewPostgresStore(db)
			if err := baselineStore.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate baseline store: %w", err)
			}
			s.baselines = baselineStore

			eventStore := event.NewPostgresStore(db)
			if err := eventStore.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate event store: %w", err)
			}
			s.events = eventStore

			s.healthReg.Register("database", health.PingChecker("database", db))
		} else {
			s.baselines = baseline.NewMemoryStore()
			s.events = event.NewMemoryStore()
			s.logger.Info("using in-memory storage (data will not persist)")
		}
	}

	s.engine = engine.NewEngine(s.baselines, s.events).
		WithParams(cfg.EngineParams()).
		WithLogger(s.logger)

	if cfg.AuthUsername != "" {
		s.logger.Info("ingest authentication enabled")
	} else {
		s.logger.Warn("ingest authentication disabled (no AUTH_USERNAME set)")
	}

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Distributed tracing (no-op without an OTLP endpoint)
	shutdownTrace, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTrace = shutdownTrace
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

	// CORS
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(security.CORSMiddleware(origins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(rlCfg)
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
			requestID = idgen.Hex(16)
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

	// Live dashboard page
	s.router.GET("/", dashboardPageHandler)

	// WebSocket for real-time decision streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// Dashboard data
	s.router.GET("/api/dashboard", s.dashboardHandler)

	// Event ingestion (the write path) — guarded by Basic Auth
	creds := auth.Credentials{Username: s.cfg.AuthUsername, Password: s.cfg.AuthPassword}
	s.router.POST("/event", auth.Middleware(creds), s.ingestHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// ingestRequest is the JSON body accepted by POST /event. Timestamp, source
// IP, geo attributes and the device fingerprint are derived server-side.
type ingestRequest struct {
	ClientType string `json:"client_type"`
	AccessType string `json:"access_type"`
}

func (s *Server) ingestHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "invalid_request",
		})
		return
	}

	req.ClientType = validation.SanitizeString(req.ClientType, validation.MaxStringLength)
	req.AccessType = validation.SanitizeString(req.AccessType, validation.MaxStringLength)
	if verrs := validation.Validate(
		validation.Required("client_type", req.ClientType),
		validation.Required("access_type", req.AccessType),
		validation.ValidClientType("client_type", req.ClientType),
		validation.MaxLength("access_type", req.AccessType, 64),
	); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"error":   "validation_failed",
			"details": verrs,
		})
		return
	}

	sourceIP := clientIP(c)
	geo := enrich.LookupGeo(sourceIP)
	userAgent := c.GetHeader("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	fingerprint, traits := enrich.Fingerprint(userAgent, req.ClientType)

	rec := &engine.Record{
		SourceIP:          sourceIP,
		Country:           geo.Country,
		ASN:               geo.ASN,
		ClientType:        req.ClientType,
		AccessType:        req.AccessType,
		DeviceFingerprint: fingerprint,
		FingerprintMeta:   traits.Meta(),
	}

	result, err := s.engine.Ingest(ctx, rec)
	if err != nil {
		switch {
		case engine.IsValidation(err):
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  err.Error(),
			})
		case engine.IsPersistence(err):
			logging.L(ctx).Error("ingest persistence failure", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"error":  "storage unavailable",
			})
		default:
			logging.L(ctx).Error("ingest failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"error":  "internal server error",
			})
		}
		return
	}

	// Confirm the decision actually landed before acknowledging.
	if _, err := s.engine.LookupDecision(ctx, result.EventID); err != nil {
		logging.L(ctx).Error("decision missing after ingest", "event_id", result.EventID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "decision not generated",
		})
		return
	}

	s.realtimeHub.Broadcast(&realtime.Decision{
		EventID:    result.EventID,
		Timestamp:  time.Now().UTC(),
		Verdict:    string(result.Verdict),
		RiskScore:  result.RiskScore,
		AttackType: string(result.AttackType),
		Reasons:    result.Reasons,
		ClientType: req.ClientType,
		SourceIP:   sourceIP,
	})

	reasons := result.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":      "accepted",
		"event_id":    result.EventID,
		"risk_score":  result.RiskScore,
		"verdict":     result.Verdict,
		"attack_type": result.AttackType,
		"reasons":     reasons,
	})
}

// clientIP prefers X-Forwarded-For (first hop) over the socket peer.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return c.ClientIP()
}

func (s *Server) dashboardHandler(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.events.CountEvents(ctx)
	if err != nil {
		s.dashboardError(c, err)
		return
	}
	suspicious, err := s.events.CountDecisionsByVerdict(ctx, event.VerdictSuspicious)
	if err != nil {
		s.dashboardError(c, err)
		return
	}
	highRisk, err := s.events.CountDecisionsByVerdict(ctx, event.VerdictHighRisk)
	if err != nil {
		s.dashboardError(c, err)
		return
	}
	profile, err := s.baselines.Get(ctx)
	if err != nil {
		s.dashboardError(c, err)
		return
	}
	recent, err := s.events.ListRecentDecisions(ctx, 50)
	if err != nil {
		s.dashboardError(c, err)
		return
	}
	if recent == nil {
		recent = []*event.RiskDecision{}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_events":  total,
		"suspicious":    suspicious,
		"high_risk":     highRisk,
		"identity_risk": profile.IdentityRisk,
		"decisions":     recent,
	})
}

func (s *Server) dashboardError(c *gin.Context, err error) {
	logging.L(c.Request.Context()).Error("dashboard query failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Failed to load dashboard data",
	})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
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
		"name":        "AccessGuard",
		"description": "Adaptive access-risk scoring engine",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
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

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Periodic DB stats sampling
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

	// Cancel the context for all background goroutines (hub, collectors)
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
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.shutdownTrace != nil {
		if err := s.shutdownTrace(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
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

// Engine returns the risk engine for testing
func (s *Server) Engine() *engine.Engine {
	return s.engine
}
