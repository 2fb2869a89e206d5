package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// providerCommandRequest is the payload for POST /v1/providers/:name/command.
type providerCommandRequest struct {
	Subcommand string   `json:"subcommand" binding:"required"`
	Args       []string `json:"args"`
	Stream     bool     `json:"stream"`
}

// listProviders handles GET /v1/providers, reporting the status of every
// configured provider.
func (s *Server) listProviders(c *gin.Context) {
	startTime := time.Now()
	defer trackPerformanceWithMetrics(s.metricsService, startTime)()

	providersInfo := make([]gin.H, 0, len(s.providerOrder))
	for _, name := range s.providerOrder {
		p := s.providers[name]
		info := gin.H{
			"name":      name,
			"available": p.IsAvailable(),
			"default":   name == s.defaultProvider,
		}
		if version, ok := p.GetVersion(c.Request.Context()); ok {
			info["version"] = version
		}
		auth := p.GetAuthStatus(c.Request.Context())
		info["authenticated"] = auth.Authenticated
		if auth.Account != "" {
			info["account"] = auth.Account
		}
		providersInfo = append(providersInfo, info)
	}

	c.JSON(http.StatusOK, gin.H{"providers": providersInfo})
}

// providerCommand handles POST /v1/providers/:name/command, running an
// arbitrary subcommand of a provider's CLI tool on the caller's behalf.
func (s *Server) providerCommand(c *gin.Context) {
	startTime := time.Now()
	defer trackPerformanceWithMetrics(s.metricsService, startTime)()
	defer withPanicRecoveryWithMetrics(c, s.metricsService, startTime, s.config.Logger)()

	name := c.Param("name")
	p, ok := s.providers[name]
	if !ok {
		respondWithOpenAIError(c, http.StatusNotFound, "unknown provider: "+name)
		return
	}

	var request providerCommandRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondWithOpenAIError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if request.Stream {
		s.streamProviderCommand(c, p.Name(), request, startTime)
		return
	}

	output, err := p.ExecuteCommand(c.Request.Context(), request.Subcommand, request.Args)
	if err != nil {
		s.config.Logger.Error("Provider command failed (provider=%s, subcommand=%s): %v", name, request.Subcommand, err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, "", name)
		respondWithOpenAIError(c, statusForError(err), err.Error())
		return
	}

	recordRequestResultWithMetrics(s.metricsService, true, startTime, "", name)
	c.JSON(http.StatusOK, gin.H{
		"provider":   name,
		"subcommand": request.Subcommand,
		"output":     output,
	})
}

func (s *Server) streamProviderCommand(c *gin.Context, name string, request providerCommandRequest, startTime time.Time) {
	p := s.providers[name]
	stream, err := p.ExecuteCommandStream(c.Request.Context(), request.Subcommand, request.Args)
	if err != nil {
		recordRequestResultWithMetrics(s.metricsService, false, startTime, "", name)
		respondWithOpenAIError(c, statusForError(err), err.Error())
		return
	}
	defer stream.Close()

	setStreamingHeaders(c)
	flusher, canFlush := c.Writer.(http.Flusher)

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			recordRequestResultWithMetrics(s.metricsService, false, startTime, "", name)
			return
		case fragment, open := <-stream.Fragments():
			if !open {
				if streamErr := stream.Err(); streamErr != nil {
					recordRequestResultWithMetrics(s.metricsService, false, startTime, "", name)
					_ = writeSSEJSON(c.Writer, gin.H{"error": streamErr.Error()})
				} else {
					recordRequestResultWithMetrics(s.metricsService, true, startTime, "", name)
					_, _ = writeSSEDone(c.Writer)
				}
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEJSON(c.Writer, gin.H{"output": fragment}); err != nil {
				recordRequestResultWithMetrics(s.metricsService, false, startTime, "", name)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

// listTools handles GET /v1/tools
func (s *Server) listTools(c *gin.Context) {
	if s.mcpBridge == nil {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, "MCP tool bridge not configured")
		return
	}

	tools, err := s.mcpBridge.ListTools(c.Request.Context())
	if err != nil {
		s.config.Logger.Error("MCP tool listing failed: %v", err)
		respondWithOpenAIError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

// describeTool handles GET /v1/tools/:name
func (s *Server) describeTool(c *gin.Context) {
	if s.mcpBridge == nil {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, "MCP tool bridge not configured")
		return
	}

	name := c.Param("name")
	tool, err := s.mcpBridge.DescribeTool(c.Request.Context(), name)
	if err != nil {
		s.config.Logger.Error("MCP tool lookup failed (tool=%s): %v", name, err)
		respondWithOpenAIError(c, http.StatusBadGateway, err.Error())
		return
	}
	if tool == nil {
		respondWithOpenAIError(c, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	c.JSON(http.StatusOK, tool)
}

// callTool handles POST /v1/tools/:name/call
func (s *Server) callTool(c *gin.Context) {
	startTime := time.Now()
	defer trackPerformanceWithMetrics(s.metricsService, startTime)()

	if s.mcpBridge == nil {
		respondWithOpenAIError(c, http.StatusServiceUnavailable, "MCP tool bridge not configured")
		return
	}

	name := c.Param("name")
	var arguments map[string]any
	if err := c.ShouldBindJSON(&arguments); err != nil {
		respondWithOpenAIError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.mcpBridge.CallTool(c.Request.Context(), name, arguments)
	if err != nil {
		s.config.Logger.Error("MCP tool call failed (tool=%s): %v", name, err)
		respondWithOpenAIError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tool":   name,
		"result": result,
	})
}
