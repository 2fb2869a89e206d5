package server

import (
	"net/http"
	"sort"
	"time"

	"cli2api/internal/core"
	"cli2api/internal/translate"

	"github.com/gin-gonic/gin"
)

// listModels handles GET /v1/models, aggregating the model listings of
// every configured provider into one OpenAI model list.
func (s *Server) listModels(c *gin.Context) {
	startTime := time.Now()
	defer trackPerformanceWithMetrics(s.metricsService, startTime)()

	created := time.Now().Unix()
	seen := make(map[string]bool)
	var data []core.ModelInfo

	for _, name := range s.providerOrder {
		p := s.providers[name]
		models, err := p.GetAvailableModels(c.Request.Context())
		if err != nil {
			s.config.Logger.Warn("Model listing failed for provider %s: %v", name, err)
			continue
		}
		for _, m := range models {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			data = append(data, core.ModelInfo{
				ID:      m.ID,
				Object:  core.ModelObjectType,
				Created: created,
				OwnedBy: core.ModelOwner,
			})
		}
	}

	sort.Slice(data, func(i, j int) bool { return data[i].ID < data[j].ID })

	c.JSON(http.StatusOK, core.ModelList{
		Object: core.ModelListObjectType,
		Data:   data,
	})
}

// chatCompletions handles POST /v1/chat/completions
func (s *Server) chatCompletions(c *gin.Context) {
	startTime := time.Now()
	defer trackPerformanceWithMetrics(s.metricsService, startTime)()
	defer withPanicRecoveryWithMetrics(c, s.metricsService, startTime, s.config.Logger)()

	var request core.ChatCompletionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondWithOpenAIError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(request.Messages) == 0 {
		respondWithOpenAIError(c, http.StatusBadRequest, "messages must not be empty")
		return
	}

	providerName := c.Query("provider")
	p, ok := s.selectProvider(providerName)
	if !ok {
		respondWithOpenAIError(c, http.StatusNotFound, "unknown provider: "+providerName)
		return
	}

	if request.Stream {
		s.handleStreamingChat(c, p, &request, startTime)
		return
	}

	response, err := p.ChatCompletion(c.Request.Context(), &request)
	if err != nil {
		s.config.Logger.Error("Chat completion failed (provider=%s, model=%s): %v", p.Name(), request.Model, err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
		respondWithOpenAIError(c, statusForError(err), err.Error())
		return
	}

	recordRequestResultWithMetrics(s.metricsService, true, startTime, request.Model, p.Name())
	c.JSON(http.StatusOK, response)
}

// handleStreamingChat relays provider output fragments as SSE chunks.
// One role chunk opens the stream, one content chunk per fragment
// follows, and a finish chunk plus [DONE] closes it.
func (s *Server) handleStreamingChat(c *gin.Context, p core.Provider, request *core.ChatCompletionRequest, startTime time.Time) {
	stream, err := p.ChatCompletionStream(c.Request.Context(), request)
	if err != nil {
		s.config.Logger.Error("Chat completion stream failed to start (provider=%s, model=%s): %v", p.Name(), request.Model, err)
		recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
		respondWithOpenAIError(c, statusForError(err), err.Error())
		return
	}
	defer stream.Close()

	setStreamingHeaders(c)

	flusher, canFlush := c.Writer.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	responseID := translate.NewResponseID()
	created := time.Now().Unix()

	if err := writeSSEJSON(c.Writer, translate.NewStreamRoleChunk(responseID, created, request.Model)); err != nil {
		recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
		return
	}
	flush()

	// Fragments arrive as separator-stripped lines. Hold one back and
	// rejoin with "\n" so the concatenated deltas equal the content a
	// non-streaming call would return for the same output (which trims
	// the trailing newline).
	var pending string
	havePending := false
	emitPending := func(separator string) bool {
		if !havePending {
			return true
		}
		if err := writeSSEJSON(c.Writer, translate.NewStreamChunk(responseID, created, request.Model, pending+separator)); err != nil {
			return false
		}
		flush()
		return true
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			s.config.Logger.Info("Client disconnected during stream (provider=%s)", p.Name())
			recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
			return
		case fragment, open := <-stream.Fragments():
			if !open {
				if streamErr := stream.Err(); streamErr != nil {
					_ = emitPending("")
					s.config.Logger.Error("Stream failed mid-flight (provider=%s): %v", p.Name(), streamErr)
					recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
					// Headers are already out; surface the failure in-band.
					_ = writeSSEJSON(c.Writer, gin.H{"error": streamErr.Error()})
					flush()
					return
				}
				if !emitPending("") {
					recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
					return
				}
				if err := writeSSEJSON(c.Writer, translate.NewStreamFinalChunk(responseID, created, request.Model)); err == nil {
					_, _ = writeSSEDone(c.Writer)
				}
				flush()
				recordRequestResultWithMetrics(s.metricsService, true, startTime, request.Model, p.Name())
				return
			}
			if !emitPending("\n") {
				recordRequestResultWithMetrics(s.metricsService, false, startTime, request.Model, p.Name())
				return
			}
			pending, havePending = fragment, true
		}
	}
}
