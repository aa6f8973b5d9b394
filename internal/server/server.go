// Package server sets up the HTTP server with all routes.
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

	"github.com/mbd888/bridgegate/internal/bridge"
	"github.com/mbd888/bridgegate/internal/config"
	"github.com/mbd888/bridgegate/internal/directory"
	"github.com/mbd888/bridgegate/internal/gatewaytx"
	"github.com/mbd888/bridgegate/internal/health"
	"github.com/mbd888/bridgegate/internal/logging"
	"github.com/mbd888/bridgegate/internal/metrics"
	"github.com/mbd888/bridgegate/internal/ratelimit"
	"github.com/mbd888/bridgegate/internal/realtime"
	"github.com/mbd888/bridgegate/internal/security"
	"github.com/mbd888/bridgegate/internal/traces"
	"github.com/mbd888/bridgegate/internal/validation"
	"github.com/mbd888/bridgegate/internal/xrpl"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg          *config.Config
	accounts     directory.Store
	transactions gatewaytx.Store
	quotes       *bridge.QuoteService
	payments     *bridge.PaymentService
	status       *bridge.StatusService
	realtimeHub  *realtime.Hub
	limiter      *ratelimit.Limiter
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

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

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
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

		ctx := context.Background()
		accountStore := directory.NewPostgresStore(db)
		if err := accountStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate account directory", "error", err)
		}
		s.accounts = accountStore

		txStore := gatewaytx.NewPostgresStore(db)
		if err := txStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate gateway transactions", "error", err)
		}
		s.transactions = txStore

		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.accounts = directory.NewMemoryStore()
		s.transactions = gatewaytx.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	identity := bridge.GatewayIdentity{
		Domain:     cfg.Domain,
		ColdWallet: cfg.ColdWallet,
		HotWallet:  cfg.HotWallet,
	}

	pathfinder := xrpl.NewClient(cfg.PathfindURL, cfg.PeerTimeout)

	peer := bridge.NewClient(bridge.ClientConfig{
		Scheme:             cfg.PeerScheme,
		Timeout:            cfg.PeerTimeout,
		InsecureSkipVerify: cfg.PeerInsecureTLS,
	})
	if cfg.PeerInsecureTLS {
		s.logger.Warn("peer TLS verification disabled, development only")
	}

	s.realtimeHub = realtime.NewHub(s.logger)
	events := realtime.NewSink(s.realtimeHub)

	s.quotes = bridge.NewQuoteService(identity, s.accounts, pathfinder, peer, nil, s.logger)
	s.payments = bridge.NewPaymentService(identity, s.accounts, s.transactions, peer, events, s.logger)
	s.status = bridge.NewStatusService(s.transactions, s.logger)

	s.healthReg = health.NewRegistry()
	if s.db != nil {
		db := s.db
		s.healthReg.Register("db", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		})
	}

	s.logger.Info("bridge gateway configured",
		"domain", cfg.Domain,
		"cold_wallet", cfg.ColdWallet,
		"hot_wallet", cfg.HotWallet,
		"pathfinder", cfg.PathfindURL,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.limiter = ratelimit.New(ratelimit.DefaultConfig())
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
			"success": false,
			"errors":  []string{"internal error"},
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Per-IP rate limiting
	s.router.Use(s.limiter.Middleware())

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

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

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

	// WebSocket for real-time payment events
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// Gateway info
	s.router.GET("/api", s.infoHandler)

	// Bridge payment protocol (gateway-to-gateway API)
	bridge.NewHandler(s.quotes, s.payments, s.status).RegisterRoutes(s.router)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

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
		"name":        "Bridgegate",
		"description": "Bridge payment gateway",
		"version":     "0.1.0",
		"domain":      s.cfg.Domain,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Distributed tracing (no-op without OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTraces, err := traces.Init(runCtx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
		shutdownTraces = func(context.Context) error { return nil }
	}

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
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"domain", s.cfg.Domain,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Periodic DB stats for Prometheus
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
		cancel()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	shutdownErr := s.Shutdown()

	if err := shutdownTraces(context.Background()); err != nil {
		s.logger.Error("trace exporter shutdown error", "error", err)
	}

	return shutdownErr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
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

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
