package server

import (
	"cli2api/internal/metrics"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.ginMode)
	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())
	s.router.Use(s.rateLimitMiddleware())

	// Public routes (no auth)
	s.router.GET("/", metrics.ShowStatsPage)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/api/stats", s.getStatsData)
	s.router.GET("/stats/api", s.statsAPI)

	// Protected admin routes (auth required)
	admin := s.router.Group("/")
	admin.Use(s.authenticateClient)
	admin.GET("/log", metrics.StreamLog)

	// API routes (auth required)
	api := s.router.Group("/v1")
	api.Use(s.authenticateClient)
	{
		api.GET("/models", s.listModels)
		api.POST("/chat/completions", s.chatCompletions)
		api.GET("/providers", s.listProviders)
		api.POST("/providers/:name/command", s.providerCommand)
		api.GET("/tools", s.listTools)
		api.GET("/tools/:name", s.describeTool)
		api.POST("/tools/:name/call", s.callTool)
	}
}
