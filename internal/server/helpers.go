package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cli2api/internal/core"
	"cli2api/internal/metrics"
	"cli2api/internal/util"

	"github.com/gin-gonic/gin"
)

// setStreamingHeaders sets streaming response HTTP headers
func setStreamingHeaders(c *gin.Context) {
	c.Header(core.HeaderContentType, core.ContentTypeEventStream)
	c.Header(core.HeaderCacheControl, core.CacheControlNoCache)
	c.Header(core.HeaderConnection, core.ConnectionKeepAlive)
}

// writeSSEData writes SSE format data
func writeSSEData(w io.Writer, data []byte) (int, error) {
	return fmt.Fprintf(w, "%s%s\n\n", core.StreamChunkPrefix, string(data))
}

// writeSSEJSON marshals v and writes it as one SSE event
func writeSSEJSON(w io.Writer, v any) error {
	data, err := util.MarshalJSON(v)
	if err != nil {
		return err
	}
	_, err = writeSSEData(w, data)
	return err
}

// writeSSEDone writes SSE end marker
func writeSSEDone(w io.Writer) (int, error) {
	return fmt.Fprintf(w, "%s%s\n\n", core.StreamChunkPrefix, core.StreamChunkDoneMessage)
}

// respondWithOpenAIError returns OpenAI format error response
func respondWithOpenAIError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// statusForError maps the invocation failure taxonomy onto HTTP status
// codes. Unknown errors read as internal.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrCommandNotFound), errors.Is(err, core.ErrSpawnFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNonZeroExit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// trackPerformanceWithMetrics records performance metrics
func trackPerformanceWithMetrics(m *metrics.MetricsService, startTime time.Time) func() {
	return func() {
		duration := time.Since(startTime)
		m.RecordHTTPRequest(duration)
	}
}

// recordRequestResultWithMetrics records request result
func recordRequestResultWithMetrics(m *metrics.MetricsService, success bool, startTime time.Time, model, providerName string) {
	if success {
		metrics.RecordSuccessWithMetrics(m, startTime, model, providerName)
	} else {
		metrics.RecordFailureWithMetrics(m, startTime, model, providerName)
	}
}

// withPanicRecoveryWithMetrics wraps handler with panic recovery
func withPanicRecoveryWithMetrics(
	c *gin.Context,
	m *metrics.MetricsService,
	startTime time.Time,
	logger core.Logger,
) func() {
	return func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handler: %v", r)
			metrics.RecordFailureWithMetrics(m, startTime, "", "")
			respondWithOpenAIError(c, http.StatusInternalServerError, "internal server error")
		}
	}
}
