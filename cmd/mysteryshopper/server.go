package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mysteryshopper/agent/artifacts"
	"github.com/BaSui01/mysteryshopper/agent/persistence"
	"github.com/BaSui01/mysteryshopper/agent/runner"
	"github.com/BaSui01/mysteryshopper/api/handlers"
	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/cache"
	"github.com/BaSui01/mysteryshopper/internal/metrics"
	"github.com/BaSui01/mysteryshopper/internal/migration"
	"github.com/BaSui01/mysteryshopper/internal/server"
	"github.com/BaSui01/mysteryshopper/internal/telemetry"
	"github.com/BaSui01/mysteryshopper/quick"
)

const metricsNamespace = "mysteryshopper"

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger := a.newLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting MysteryShopper",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(ctx, cfg, metrics.NewCollector(metricsNamespace, logger), logger, a.quickOpts...)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

// =============================================================================
// 🖥️ 服务器结构
// =============================================================================

// Server 服务器，持有所有长生命周期组件
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	telemetry *telemetry.Providers
	store     persistence.Store
	cache     *cache.Manager
	artifacts *artifacts.Manager
	runner    *runner.Manager

	handler        http.Handler
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 停止限流器的清理协程
	stopBackground context.CancelFunc
}

// NewServer 初始化所有组件；ctx 仅用于启动阶段的连接与迁移
func NewServer(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger, quickOpts ...quick.Option) (_ *Server, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		return nil, errors.New("metrics collector is required")
	}
	s := &Server{cfg: cfg, logger: logger, collector: collector}
	defer func() {
		if err != nil {
			s.closeResources(context.WithoutCancel(ctx))
		}
	}()

	if s.telemetry, err = telemetry.Init(cfg.Telemetry, logger); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	if err = s.initStore(ctx); err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		if s.cache, err = cache.NewManager(cache.ConfigFrom(cfg.Cache), logger); err != nil {
			return nil, fmt.Errorf("init report cache: %w", err)
		}
	}
	if s.artifacts, err = quick.NewArtifacts(cfg.Artifacts, logger); err != nil {
		return nil, err
	}

	opts := append([]quick.Option{
		quick.WithConfig(cfg),
		quick.WithLogger(logger),
		quick.WithScreenshotSaver(s.artifacts),
		quick.WithMetrics(collector),
		quick.WithCallObserver(collector.OracleObserver(cfg.Oracle.Provider)),
	}, quickOpts...)
	ctrl, err := quick.New(opts...)
	if err != nil {
		return nil, err
	}

	runnerOpts := []runner.Option{runner.WithRejectionRecorder(collector)}
	if cfg.Server.MaxConcurrentJourneys > 0 {
		runnerOpts = append(runnerOpts, runner.WithMaxConcurrent(cfg.Server.MaxConcurrentJourneys))
	}
	s.runner = runner.NewManager(ctrl, s.store, logger, runnerOpts...)

	s.handler = s.routes()
	s.httpManager = server.NewManager("api", s.handler, server.ConfigFrom(cfg.Server, cfg.Server.HTTPPort), logger)
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager("metrics", mux, server.ConfigFrom(cfg.Server, cfg.Server.MetricsPort), logger)
	}
	return s, nil
}

// initStore 打开旅程存储；SQL 存储先执行迁移
func (s *Server) initStore(ctx context.Context) error {
	sc := s.cfg.Store
	if persistence.StoreType(sc.Type) == persistence.StoreTypeSQL {
		m, err := migration.NewMigratorFromDatabaseConfig(sc.Database, s.logger)
		if err != nil {
			return fmt.Errorf("open migrator: %w", err)
		}
		upErr := m.Up(ctx)
		_ = m.Close()
		if upErr != nil {
			return fmt.Errorf("apply migrations: %w", upErr)
		}
	}

	store, err := persistence.New(ctx, sc, s.logger)
	if err != nil {
		return fmt.Errorf("open journey store: %w", err)
	}
	backend := sc.Type
	if backend == "" {
		backend = string(persistence.StoreTypeMemory)
	}
	s.store = persistence.Instrument(store, backend, s.collector)
	s.logger.Info("journey store ready", zap.String("backend", backend))
	return nil
}

// routes 注册处理器并包装中间件链
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger).WithVersion(Version)
	health.RegisterCheck(handlers.NewCheck("store", s.store.Ping))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewCheck("cache", s.cache.Ping))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	jopts := []handlers.JourneyHandlerOption{
		handlers.WithOriginPatterns(originHosts(s.cfg.Server.CORSAllowedOrigins)...),
	}
	if s.cache != nil {
		jopts = append(jopts, handlers.WithReportCache(s.cache))
	}
	handlers.NewJourneyHandler(s.runner, handlers.JourneyDefaults{
		Goal:     s.cfg.Journey.DefaultGoal,
		MaxSteps: s.cfg.Journey.MaxSteps,
	}, s.logger, jopts...).Register(mux)
	handlers.NewScreenshotHandler(s.artifacts, s.logger).Register(mux)

	bgCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel

	skipAuth := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	var authenticators []Authenticator
	if len(s.cfg.Server.APIKeys) > 0 {
		authenticators = append(authenticators, APIKeyAuthenticator(s.cfg.Server.APIKeys, s.cfg.Server.AllowQueryAPIKey))
	}
	if s.cfg.Server.JWT.Enabled() {
		authenticators = append(authenticators, JWTAuthenticator(s.cfg.Server.JWT, s.logger))
	}
	if len(authenticators) == 0 {
		s.logger.Warn("no API keys or JWT configured, API is unauthenticated")
	}

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
	}
	if s.telemetry.Enabled() {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		Auth(skipAuth, s.logger, authenticators...),
	)
	return Chain(mux, middlewares...)
}

// Handler 返回完整的 HTTP 处理链
func (s *Server) Handler() http.Handler {
	return s.handler
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 API 与指标服务，阻塞到 ctx 结束后完成优雅关闭
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	if s.metricsManager != nil {
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}
	s.logger.Info("server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	err := g.Wait()
	s.Shutdown(context.WithoutCancel(ctx))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown 取消运行中的旅程并释放资源
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout())
	defer cancel()

	if s.runner != nil {
		if err := s.runner.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("journey runner shutdown incomplete", zap.Error(err))
		}
	}
	s.closeResources(shutdownCtx)
	s.logger.Info("shutdown complete")
}

func (s *Server) closeResources(ctx context.Context) {
	if s.stopBackground != nil {
		s.stopBackground()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close journey store", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("close report cache", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}

// originHosts converts allowed origins to the host patterns websocket
// origin checks expect.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		if o != "" {
			hosts = append(hosts, o)
		}
	}
	return hosts
}
