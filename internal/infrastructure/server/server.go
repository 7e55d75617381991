package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/ServiceHub/backend/internal/api/http"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/api/middleware"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/dispatch"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/registry"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/artifact"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/remote"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	registry *registry.Registry
	store    registry.Store
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing ServiceHub",
		zap.String("listen", cfg.Server.ListenAddr()),
		zap.String("advertise", cfg.Server.AdvertiseAddr()),
		zap.String("instance_id", cfg.Server.InstanceID),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("servicehub", logger.Logger)

	// Restore the registry, then seed a fresh deployment
	store := registry.NewFileStore(cfg.Store.Path)
	reg := registry.New(logger.Named("registry")).WithMetrics(metrics)
	reg.Restore(store)

	seeder := registry.NewSeeder(reg, cfg.Store.SeedDir, logger.Named("seeder"))
	if _, err := seeder.Seed(); err != nil {
		logger.Warn("Failed to seed services", zap.Error(err))
	}

	// Backends
	client := remote.NewClient(remote.ClientConfig{
		Timeout:         cfg.Remote.Timeout,
		Retries:         cfg.Remote.Retries,
		RequestsPerSec:  cfg.Remote.RequestsPerSec,
		BreakerFailures: cfg.Remote.BreakerFailures,
	})
	detector := remote.NewLoopbackDetector(cfg.Server.AdvertiseHost, cfg.Server.AdvertisePort)
	invoker := remote.NewInvoker(client, detector, cfg.Server.InstanceID, logger.Named("remote")).
		WithMetrics(metrics)
	runner := artifact.NewRunner(cfg.Artifact.Root, cfg.Artifact.Cache, logger.Named("artifact"))

	dispatcher := dispatch.New(invoker, runner, logger.Named("dispatch")).
		WithMetrics(metrics).
		WithTracer(tracer)

	router := newRouter(cfg)
	router.Use(tracing.Middleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	applyEdgeMiddleware(router, cfg, logger)
	router.Use(middleware.LoopGuard(cfg.Server.InstanceID, logger.Named("loopguard")))

	handlers := api.NewHandlers(reg, dispatcher, metrics, client, cfg.Server.InstanceID, logger.Named("api"))
	api.RegisterRoutes(router, handlers)

	logger.Info("Server initialized successfully", zap.Int("services", reg.Len()))

	return &Server{
		router:   router,
		registry: reg,
		store:    store,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracer,
	}, nil
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the service registry
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Run serves until ctx is cancelled, then shuts down gracefully and saves the registry
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.ListenAddr()
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	err := serve(ctx, &http.Server{Addr: addr, Handler: s.router}, s.config.Server.ShutdownTimeout, s.logger)
	s.Close()
	return err
}

// Close persists the registry and releases background resources
func (s *Server) Close() {
	s.registry.Persist(s.store)
	s.tracer.Close()
	s.metrics.Close()
	_ = s.logger.Sync()
}

// DemoServer serves model artifacts as standalone HTTP endpoints
type DemoServer struct {
	router *gin.Engine
	logger *logging.Logger
	config *config.Config
}

// NewDemoServer creates the demo model server
func NewDemoServer(cfg *config.Config, logger *logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	router := newRouter(cfg)
	applyEdgeMiddleware(router, cfg, logger)
	api.RegisterModelRoutes(router, api.NewModelHandlers(cfg.Demo.ModelsDir, cfg.Artifact.Cache, logger.Named("models")))

	logger.Info("Demo model server initialized", zap.String("models_dir", cfg.Demo.ModelsDir))
	return &DemoServer{router: router, logger: logger, config: cfg}
}

// Handler returns the configured router
func (d *DemoServer) Handler() http.Handler {
	return d.router
}

// Run serves until ctx is cancelled
func (d *DemoServer) Run(ctx context.Context) error {
	addr := d.config.Demo.ListenAddr()
	d.logger.Info("Starting demo model server", zap.String("addr", addr))

	err := serve(ctx, &http.Server{Addr: addr, Handler: d.router}, d.config.Server.ShutdownTimeout, d.logger)
	_ = d.logger.Sync()
	return err
}

func newRouter(cfg *config.Config) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	return router
}

func applyEdgeMiddleware(router *gin.Engine, cfg *config.Config, logger *logging.Logger) {
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.Origins...)))
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
}

// serve runs srv until ctx is done and drains in-flight requests within timeout
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, logger *logging.Logger) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
