package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"cli2api/internal/core"

	"github.com/gin-gonic/gin"
)

// maxBodySizeMiddleware caps request bodies. Chat prompts are plain
// text, so the cap matches the output capture bound rather than the
// multi-megabyte payloads an image-accepting API would need.
func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, core.MaxRequestBodySize)
		c.Next()
	}
}

// rateLimiter bounds how many invocations a caller may start per minute.
// Every allowed request can spawn a subprocess, so the window is keyed
// by client API key when one is presented, falling back to client IP
// for unauthenticated endpoints.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*callerWindow
	rate    int
	sweep   time.Duration
	stopped chan struct{}
}

type callerWindow struct {
	count    int
	lastSeen time.Time
}

// newRateLimiter starts a limiter whose sweep goroutine exits when ctx
// is cancelled (the server's shutdown context).
func newRateLimiter(ctx context.Context, ratePerMinute int) *rateLimiter {
	rl := &rateLimiter{
		windows: make(map[string]*callerWindow),
		rate:    ratePerMinute,
		sweep:   5 * time.Minute,
		stopped: make(chan struct{}),
	}
	go rl.sweepLoop(ctx)
	return rl
}

func (rl *rateLimiter) sweepLoop(ctx context.Context) {
	defer close(rl.stopped)
	ticker := time.NewTicker(rl.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for caller, w := range rl.windows {
				if time.Since(w.lastSeen) > time.Minute {
					delete(rl.windows, caller)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) allow(caller string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, exists := rl.windows[caller]
	if !exists || time.Since(w.lastSeen) > time.Minute {
		rl.windows[caller] = &callerWindow{count: 1, lastSeen: time.Now()}
		return true
	}
	w.count++
	w.lastSeen = time.Now()
	return w.count <= rl.rate
}

// clientCredential extracts the presented API key and names its source.
// x-api-key wins over the Authorization header when both are present.
func clientCredential(c *gin.Context) (key, source string) {
	if apiKey := c.GetHeader(core.HeaderXAPIKey); apiKey != "" {
		return apiKey, "x-api-key"
	}
	if authHeader := c.GetHeader(core.HeaderAuthorization); authHeader != "" {
		return strings.TrimPrefix(authHeader, core.AuthBearerPrefix), "Bearer token"
	}
	return "", ""
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := clientCredential(c)
		if caller == "" {
			caller = c.ClientIP()
		}
		if !s.rateLimiter.allow(caller) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) isValidClientKey(providedKey string) bool {
	providedBytes := []byte(providedKey)
	for validKey := range s.validClientKeys {
		validBytes := []byte(validKey)
		if len(providedBytes) == len(validBytes) && subtle.ConstantTimeCompare(providedBytes, validBytes) == 1 {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowOrigin := os.Getenv("CORS_ALLOW_ORIGIN")
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")
		c.Header("Access-Control-Max-Age", core.CORSMaxAge)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authenticateClient guards the API surface. No configured keys means
// the deployment is not ready to serve, not that it is open.
func (s *Server) authenticateClient(c *gin.Context) {
	if len(s.validClientKeys) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable: no client API keys configured"})
		c.Abort()
		return
	}

	key, source := clientCredential(c)
	if source == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required in Authorization header (Bearer) or x-api-key header"})
		c.Abort()
		return
	}
	if !s.isValidClientKey(key) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid client API key (" + source + ")"})
		c.Abort()
		return
	}
}
