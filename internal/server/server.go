// Package server exposes the fraud risk engine over HTTP.
//
// The engine itself is transport-agnostic; this is the thin serving
// surface that decodes transactions, invokes Engine.Evaluate inline in
// the transaction path, records evaluated transactions into the ledger,
// and serves health and metrics endpoints.
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
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/sentrapay/riskengine/internal/audit"
	"github.com/sentrapay/riskengine/internal/config"
	"github.com/sentrapay/riskengine/internal/fraud"
	"github.com/sentrapay/riskengine/internal/health"
	"github.com/sentrapay/riskengine/internal/logging"
	"github.com/sentrapay/riskengine/internal/metrics"
	"github.com/sentrapay/riskengine/internal/ratelimit"
	"github.com/sentrapay/riskengine/internal/security"
	"github.com/sentrapay/riskengine/internal/traces"
)

// historyStore is a HistorySource that can also append evaluated
// transactions. The append happens after the decision is returned, so a
// transaction is never counted against itself.
type historyStore interface {
	fraud.HistorySource
	RecordTransaction(ctx context.Context, tx fraud.Transaction, status fraud.TransactionStatus) error
}

// Server wraps the HTTP server and engine dependencies.
type Server struct {
	cfg        *config.Config
	engine     *fraud.Engine
	history    historyStore
	sink       audit.Sink
	dispatcher *audit.Dispatcher
	db         *sql.DB // nil if using in-memory stores
	limiter    *ratelimit.Limiter
	router     *gin.Engine
	httpSrv    *http.Server
	logger     *slog.Logger
	checks     *health.Registry

	tracerShutdown func(context.Context) error
	cancelRunCtx   context.CancelFunc
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHistory sets a custom history store (for testing).
func WithHistory(h historyStore) Option {
	return func(s *Server) {
		s.history = h
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		s.db = db
		if s.history == nil {
			s.history = fraud.NewPostgresHistory(db)
		}
		s.sink = audit.NewPostgresSink(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		if s.history == nil {
			s.history = fraud.NewMemoryHistory()
		}
		s.sink = audit.NewMemorySink()
		s.logger.Warn("DATABASE_URL not set, using in-memory storage (data is lost on restart)")
	}

	s.dispatcher = audit.NewDispatcher(s.sink, s.logger, audit.Options{
		QueueSize:   cfg.AuditQueueSize,
		MaxAttempts: cfg.AuditMaxAttempts,
		BaseDelay:   cfg.AuditRetryBackoff,
	})
	s.checks.Register("audit_sink", func(ctx context.Context) health.Status {
		if !s.dispatcher.Healthy() {
			return health.Status{Name: "audit_sink", Healthy: false, Detail: "circuit open"}
		}
		return health.Status{Name: "audit_sink", Healthy: true}
	})

	s.engine = fraud.NewEngine(s.history, enginePolicy(cfg), s.logger).
		WithAuditor(s.dispatcher).
		WithTimeout(cfg.EvaluationTimeout)

	if cfg.RateLimitRPM > 0 {
		s.limiter = ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitRPM,
			BurstSize:         cfg.RateLimitBurst,
			CleanupInterval:   time.Minute,
		})
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// enginePolicy applies the deployment's policy overrides to the defaults.
func enginePolicy(cfg *config.Config) fraud.Policy {
	p := fraud.DefaultPolicy()
	if !cfg.HighValueThreshold.IsZero() {
		p.Amount.HighValueThreshold = cfg.HighValueThreshold
	}
	if !cfg.DailyCap.IsZero() {
		p.Amount.DailyCap = cfg.DailyCap
	}
	return p
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully: HTTP drain first, audit queue drain second, so queued
// assessments still reach the sink.
func (s *Server) Run() error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRunCtx = cancel

	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	s.tracerShutdown = shutdown

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancel()
		return err
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	return s.Shutdown()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", "error", err)
		}
	}

	s.dispatcher.Close(ctx)

	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil {
			s.logger.Error("tracer shutdown failed", "error", err)
		}
	}
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// Router exposes the gin engine (for tests).
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
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

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
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

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	v1.POST("/evaluations", s.evaluateHandler)
	v1.GET("/evaluations/:userId", s.listEvaluationsHandler)
}

// maskDSN hides credentials in a database URL for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable DSN)"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
