package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/collector"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/harvest"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/trace"
)

const shutdownTimeout = 10 * time.Second

// Server is an instrumented sample application reporting to the collector
type Server struct {
	router     *gin.Engine
	grpcServer *grpc.Server
	health     *health.Server
	session    *collector.Session
	harvester  *harvest.Harvester
	logger     *zap.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	registry   *prometheus.Registry
}

// NewServer wires the agent and the sample routes. Nothing touches the
// network until Run.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		AppNames:    cfg.App.Names,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing monitoring agent",
		zap.String("collector_host", cfg.Collector.Host),
		zap.Int("collector_port", cfg.Collector.Port),
		zap.Bool("ssl", cfg.Collector.SSL),
		zap.String("port", cfg.Server.Port),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	encoding, err := collector.ParseEncoding(cfg.Collector.Encoding)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(cfg.App.SettingsFile)
	if err != nil {
		return nil, err
	}

	channel := collector.NewChannel(collector.ChannelConfig{
		Host:       cfg.Collector.Host,
		Port:       cfg.Collector.Port,
		LicenseKey: cfg.Collector.LicenseKey,
		SSL:        cfg.Collector.SSL,
		Encoding:   encoding,
		Timeout:    cfg.Collector.Timeout,
	}, collector.WithLogger(logger.Named("channel")), collector.WithMetrics(metrics))

	session := collector.NewSession(channel, collector.DetectEnvironment(cfg.App.Names),
		collector.WithSettings(settings),
		collector.WithSessionLogger(logger.Named("session")),
		collector.WithSessionMetrics(metrics),
	)

	harvester := harvest.New(session,
		harvest.WithLogger(logger.Named("harvest")),
		harvest.WithMetrics(metrics),
		harvest.WithMaxSamples(cfg.Harvest.MaxSamples),
		harvest.WithBackoff(cfg.Harvest.BackoffMin, cfg.Harvest.BackoffMax),
	)

	traceLogger := logger.Named("trace")
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(trace.GinMiddleware(harvester, traceLogger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{trace.TransactionHeader},
		MaxAge:          12 * time.Hour,
	}))

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor(harvester, traceLogger)),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor(harvester, traceLogger)),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		router:     router,
		grpcServer: grpcServer,
		health:     healthServer,
		session:    session,
		harvester:  harvester,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		registry:   registry,
	}
	s.routes()

	logger.Info("Agent initialized successfully")
	return s, nil
}

func (s *Server) routes() {
	handlers := newHandlers(s.session, s.harvester, s.metrics)

	s.router.GET("/", handlers.Root)
	s.router.GET("/health", handlers.Health)
	s.router.GET("/users/:id", handlers.GetUser)
	s.router.POST("/checkout", handlers.Checkout)

	if s.config.Server.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})))
	}
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// GRPCServer exposes the instrumented gRPC server for registering services.
// Services must be registered before Run.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Harvester returns the agent's harvester
func (s *Server) Harvester() *harvest.Harvester {
	return s.harvester
}

// Run serves HTTP and reports to the collector until ctx is done. The
// harvester's final flush and collector shutdown complete before Run returns.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := ":" + s.config.Server.Port
	srv := &http.Server{Addr: addr, Handler: s.router}

	harvestDone := make(chan error, 1)
	go func() {
		harvestDone <- s.harvester.Run(ctx)
	}()

	serveErr := make(chan error, 2)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	if s.config.Server.GRPCPort != "" {
		grpcAddr := ":" + s.config.Server.GRPCPort
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		} else {
			go func() {
				s.logger.Info("Starting gRPC server", zap.String("addr", grpcAddr))
				if err := s.grpcServer.Serve(lis); err != nil {
					serveErr <- fmt.Errorf("grpc server: %w", err)
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
		cancel()
	case err := <-harvestDone:
		// Reporting stopped for good; keep serving uninstrumented traffic.
		s.logger.Error("Harvester stopped", zap.Error(err))
		harvestDone = nil
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	if harvestDone != nil {
		if err := <-harvestDone; err != nil {
			s.logger.Warn("Harvester ended with error", zap.Error(err))
		}
	}
	return runErr
}

// Close flushes the logger
func (s *Server) Close() error {
	s.logger.Info("Shutting down agent...")
	_ = s.logger.Sync()
	return nil
}
