package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cli2api/internal/cache"
	"cli2api/internal/config"
	"cli2api/internal/core"
	"cli2api/internal/executor"
	"cli2api/internal/mcptool"
	"cli2api/internal/metrics"
	"cli2api/internal/provider"
	"cli2api/internal/util"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	router   *gin.Engine
	executor core.ProcessExecutor

	providers       map[string]core.Provider
	providerOrder   []string
	defaultProvider string

	cache          *cache.CacheService
	metricsService *metrics.MetricsService

	validClientKeys map[string]bool

	mcpBridge *mcptool.Bridge

	config config.ServerConfig

	rateLimiter *rateLimiter

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}

	cacheService := cache.NewCacheService()

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})

	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	commandExecutor := executor.NewCommandExecutor(cfg.Logger, metricsService)

	providerConfigs := cfg.Providers
	if len(providerConfigs) == 0 {
		loaded, err := config.LoadProviders(cfg.ProvidersConfigPath, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load providers: %w", err)
		}
		providerConfigs = loaded
	}

	providers := make(map[string]core.Provider)
	var providerOrder []string
	if len(providerConfigs) == 0 {
		claude := provider.NewClaudeCode(commandExecutor, cacheService, cfg.Logger, metricsService)
		providers[claude.Name()] = claude
		providerOrder = append(providerOrder, claude.Name())
	} else {
		for _, pc := range providerConfigs {
			p := provider.NewCLIProvider(pc, commandExecutor, cacheService, cfg.Logger, metricsService)
			if _, exists := providers[p.Name()]; exists {
				return nil, fmt.Errorf("duplicate provider name %q", p.Name())
			}
			providers[p.Name()] = p
			providerOrder = append(providerOrder, p.Name())
		}
	}
	cfg.Logger.Info("Initializing server with %d providers", len(providers))

	validClientKeys := make(map[string]bool)
	for _, key := range cfg.ClientAPIKeys {
		validClientKeys[key] = true
	}

	if len(validClientKeys) == 0 {
		cfg.Logger.Warn("No client API keys configured")
	} else {
		cfg.Logger.Info("Loaded %d client API keys", len(validClientKeys))
	}

	rateLimit := 120
	if envRate := os.Getenv("RATE_LIMIT"); envRate != "" {
		if parsed, parseErr := fmt.Sscanf(envRate, "%d", &rateLimit); parseErr != nil || parsed != 1 || rateLimit <= 0 {
			cfg.Logger.Warn("Invalid RATE_LIMIT value '%s', using default 120", envRate)
			rateLimit = 120
		}
	}

	var mcpBridge *mcptool.Bridge
	if mcpCommand := os.Getenv("MCP_SERVER_COMMAND"); mcpCommand != "" {
		mcpArgs := util.ParseEnvList(os.Getenv("MCP_SERVER_ARGS"))
		mcpBridge = mcptool.NewBridge(mcpCommand, mcpArgs, os.Environ(), cfg.Logger)
		cfg.Logger.Info("MCP tool bridge configured: %s", mcpCommand)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:            cfg.Port,
		ginMode:         cfg.GinMode,
		executor:        commandExecutor,
		providers:       providers,
		providerOrder:   providerOrder,
		defaultProvider: providerOrder[0],
		cache:           cacheService,
		metricsService:  metricsService,
		validClientKeys: validClientKeys,
		mcpBridge:       mcpBridge,
		config:          cfg,
		rateLimiter:     newRateLimiter(shutdownCtx, rateLimit),
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
	}

	server.setupRoutes()

	return server, nil
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // SSE streams need longer timeout
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("Server starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
		s.shutdownCancel()
	}()
}

// selectProvider resolves the provider for a request. The provider query
// parameter wins; otherwise the first configured provider serves.
func (s *Server) selectProvider(name string) (core.Provider, bool) {
	if name == "" {
		name = s.defaultProvider
	}
	p, ok := s.providers[name]
	return p, ok
}

// healthChecker is satisfied by providers that expose a structured
// availability probe beyond the core contract.
type healthChecker interface {
	CheckHealth(ctx context.Context) core.HealthReport
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	providerHealth := make(map[string]core.HealthReport, len(s.providers))
	allAvailable := true

	for _, name := range s.providerOrder {
		p := s.providers[name]
		var report core.HealthReport
		if hc, ok := p.(healthChecker); ok {
			report = hc.CheckHealth(ctx)
		} else {
			report.Available = p.IsAvailable()
			if version, ok := p.GetVersion(ctx); ok {
				report.Version = version
			}
			report.Authenticated = p.GetAuthStatus(ctx).Authenticated
		}
		providerHealth[name] = report
		if !report.Available {
			allAvailable = false
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allAvailable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"providers": providerHealth,
	})
}

func (s *Server) getStatsData(c *gin.Context) {
	ctx := c.Request.Context()

	var providersInfo []gin.H
	for _, name := range s.providerOrder {
		p := s.providers[name]
		info := gin.H{
			"name":      name,
			"available": p.IsAvailable(),
		}
		if version, ok := p.GetVersion(ctx); ok {
			info["version"] = version
		}
		auth := p.GetAuthStatus(ctx)
		info["authenticated"] = auth.Authenticated
		if auth.Account != "" {
			info["account"] = auth.Account
		}
		providersInfo = append(providersInfo, info)
	}

	stats := s.metricsService.GetRequestStats()
	periodStats := metrics.GetPeriodStats(stats.RequestHistory, 24, 24*7, 24*30)
	currentQPS := s.metricsService.GetQPS()
	timeouts, spawnFailures := s.metricsService.GetErrorCounters()

	c.JSON(http.StatusOK, gin.H{
		"currentTime":   time.Now().Format(core.TimeFormatDateTime),
		"currentQPS":    fmt.Sprintf("%.3f", currentQPS),
		"totalRecords":  len(stats.RequestHistory),
		"stats24h":      periodStats[24],
		"stats7d":       periodStats[24*7],
		"stats30d":      periodStats[24*30],
		"timeouts":      timeouts,
		"spawnFailures": spawnFailures,
		"providersInfo": providersInfo,
	})
}

// statsAPI serves the counters the embedded dashboard polls.
func (s *Server) statsAPI(c *gin.Context) {
	stats := s.metricsService.GetRequestStats()
	timeouts, spawnFailures := s.metricsService.GetErrorCounters()

	c.JSON(http.StatusOK, gin.H{
		"total_requests":      stats.TotalRequests,
		"successful_requests": stats.SuccessfulRequests,
		"failed_requests":     stats.FailedRequests,
		"qps":                 s.metricsService.GetQPS(),
		"timeouts":            timeouts,
		"spawn_failures":      spawnFailures,
		"request_history":     stats.RequestHistory,
	})
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.mcpBridge != nil {
		if err := s.mcpBridge.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close MCP bridge: %w", err))
		}
	}

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close cache service: %w", err))
		}
	}

	return closeErr
}
