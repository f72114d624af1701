package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	apihttp "github.com/GriffinCanCode/UserTrace/backend/internal/api/http"
	"github.com/GriffinCanCode/UserTrace/backend/internal/api/middleware"
	"github.com/GriffinCanCode/UserTrace/backend/internal/clients/external"
	"github.com/GriffinCanCode/UserTrace/backend/internal/domain/users"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/downstream"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Option overrides a dependency the server would otherwise build itself
type Option func(*options)

type options struct {
	logger   *logging.Logger
	registry *prometheus.Registry
	tracer   *tracing.Tracer
	db       *sql.DB
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry sets the metrics registry served on /metrics
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTracer sets the tracer instead of building one from the telemetry
// config
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithDB sets the users database instead of opening one from the database
// config. The handle should come from sqltrace for queries to be traced.
func WithDB(db *sql.DB) Option {
	return func(o *options) { o.db = db }
}

// base holds what the users API and the external service share
type base struct {
	cfg        *config.Config
	logger     *logging.Logger
	registry   *prometheus.Registry
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	requests   *lifecycle.RequestTracer
	router     *gin.Engine
	httpServer *http.Server
}

func newBase(cfg *config.Config, port string, o *options) (*base, error) {
	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Service:     cfg.Telemetry.ServiceName,
			Version:     cfg.Telemetry.ServiceVersion,
			Environment: cfg.Telemetry.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := monitoring.NewMetrics(registry)

	tracer := o.tracer
	if tracer == nil {
		var err error
		tracer, err = NewTracer(cfg.Telemetry, logger.Named("tracing").Logger, metrics)
		if err != nil {
			return nil, err
		}
	}
	tracing.SetDefault(tracer)

	requests := lifecycle.New(
		lifecycle.WithTracer(tracer),
		lifecycle.WithLogger(logger.Named("lifecycle").Logger),
		lifecycle.WithMetrics(metrics),
	)

	if gin.Mode() == gin.DebugMode && !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// Registered before the middleware so scrapes are not traced.
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// The lifecycle middleware goes first so the request span covers the
	// rest of the chain.
	router.Use(
		lifecycle.Middleware(requests),
		gin.CustomRecovery(lifecycle.Recovery(logger.Logger)),
		monitoring.Middleware(metrics),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)),
	)
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	return &base{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		tracer:   tracer,
		requests: requests,
		router:   router,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root HTTP handler
func (b *base) Handler() http.Handler { return b.router }

// Addr returns the listen address
func (b *base) Addr() string { return b.httpServer.Addr }

// Tracer returns the tracer spans are recorded with
func (b *base) Tracer() *tracing.Tracer { return b.tracer }

// Run serves HTTP until Shutdown is called
func (b *base) Run() error {
	b.logger.Info("Starting HTTP server", zap.String("addr", b.httpServer.Addr))
	if err := b.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// shutdown drains HTTP, then flushes the tracer so the spans of the
// drained requests are exported
func (b *base) shutdown(ctx context.Context) []error {
	var errs []error
	if err := b.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := b.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	tracing.SetDefault(nil)
	return errs
}

// Server is the users API process
type Server struct {
	*base
	db *sql.DB
}

// New builds the users API: tracer, traced database, external service
// client and routes.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	b, err := newBase(cfg, cfg.Server.Port, o)
	if err != nil {
		return nil, err
	}
	logger := b.logger

	logger.Info("Initializing users API",
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("external_url", cfg.External.BaseURL),
		zap.String("exporter", cfg.Telemetry.Exporter),
	)

	db := o.db
	if db == nil {
		db, err = OpenDatabase(ctx, cfg.Database, b.tracer, logger.Named("sql").Logger)
		if err != nil {
			_ = b.tracer.Shutdown(ctx)
			return nil, err
		}
	}

	client := external.NewClient(external.Config{
		BaseURL:           cfg.External.BaseURL,
		Timeout:           cfg.External.Timeout.Duration,
		RequestsPerSecond: cfg.External.RequestsPerSecond,
		Burst:             cfg.External.Burst,
		Retries:           cfg.External.Retries,
	}, b.metrics)
	calls := downstream.New(client,
		downstream.WithTracer(b.tracer),
		downstream.WithLogger(logger.Named("downstream").Logger),
	)
	enricher := external.NewService(cfg.External.BaseURL, calls)

	store := users.NewStore(db, users.DialectFor(cfg.Database.Driver))
	svc := users.NewService(store, enricher, logger.Named("users").Logger)

	handlers := apihttp.NewHandlers(svc, apihttp.NewHandlerMetrics(b.metrics), logger.Logger)
	b.router.GET("/health", apihttp.HealthHandler(apihttp.ServiceInfo{
		Name:        cfg.Telemetry.ServiceName,
		Version:     cfg.Telemetry.ServiceVersion,
		Environment: cfg.Telemetry.Environment,
	}, b.metrics))

	api := b.router.Group("/api")
	api.GET("/users", handlers.ListUsers)
	api.GET("/users/:id", handlers.GetUser)
	api.POST("/users", handlers.CreateUser)

	logger.Info("Server initialized successfully")
	return &Server{base: b, db: db}, nil
}

// Shutdown stops accepting requests, waits for in-flight ones, exports
// the remaining spans and closes the database, all bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	errs := s.shutdown(ctx)
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}

// ExternalServer is the companion external service process
type ExternalServer struct {
	*base
}

// NewExternal builds the external service
func NewExternal(cfg *config.Config, opts ...Option) (*ExternalServer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	b, err := newBase(cfg, cfg.External.Port, o)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Initializing external service",
		zap.String("port", cfg.External.Port),
		zap.Duration("min_latency", cfg.External.MinLatency.Duration),
		zap.Duration("max_latency", cfg.External.MaxLatency.Duration),
	)

	h := apihttp.NewExternalHandlers(cfg.Telemetry.ServiceName,
		cfg.External.MinLatency.Duration, cfg.External.MaxLatency.Duration,
		apihttp.NewHandlerMetrics(b.metrics))

	api := b.router.Group("/api/external")
	api.GET("/user/:id", h.GetUserData)
	api.GET("/health", h.Health)

	return &ExternalServer{base: b}, nil
}

// Shutdown stops the external service within ctx
func (s *ExternalServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down external service...")
	errs := s.shutdown(ctx)
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
