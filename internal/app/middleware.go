package app

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/csdept/csweb/internal/auth"
	"github.com/csdept/csweb/internal/config"
	"github.com/csdept/csweb/internal/ctxutil"
	"github.com/csdept/csweb/internal/logger"
	"github.com/csdept/csweb/internal/metrics"
	"github.com/csdept/csweb/internal/ratelimit"
	"github.com/csdept/csweb/internal/sentry"
	"github.com/csdept/csweb/internal/upload"
)

// requestIDHeader is echoed on every response.
const requestIDHeader = "X-Request-Id"

func newRouter(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware(cfg.CORSOrigin))
	router.Use(httpMetricsMiddleware(m))
	return router
}

// securityHeadersMiddleware adds security headers to responses. Stored
// files keep a looser policy so browsers can render PDFs inline.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		if !strings.HasPrefix(c.Request.URL.Path, upload.URLPrefix) {
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		c.Next()
	}
}

// requestIDMiddleware takes the caller's request id or generates one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := ""
		for _, h := range []string{requestIDHeader, "X-Correlation-Id"} {
			if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
				requestID = v
				break
			}
		}
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(map[string]any{
			"http_method": c.Request.Method,
			"http_path":   path,
			"http_status": status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		ctx := c.Request.Context()

		switch {
		case status >= http.StatusInternalServerError:
			entry.ErrorContext(ctx, "HTTP request failed")
		case status == http.StatusNotFound:
			entry.DebugContext(ctx, "HTTP request not found")
		case status >= http.StatusBadRequest:
			entry.WarnContext(ctx, "HTTP request rejected")
		default:
			entry.DebugContext(ctx, "HTTP request completed")
		}
	}
}

// corsMiddleware allows credentialed requests from the configured site
// origin. An empty origin disables CORS headers.
func corsMiddleware(origin string) gin.HandlerFunc {
	origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	return func(c *gin.Context) {
		if origin == "" || c.GetHeader("Origin") != origin {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// httpMetricsMiddleware observes request durations by route template.
func httpMetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// adminWriteLimitMiddleware throttles admin writes per signed-in editor.
// Reads pass through. A nil limiter disables it.
func adminWriteLimitMiddleware(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := c.ClientIP()
		if user, ok := auth.CurrentUser(c); ok && user.Email != "" {
			key = user.Email
		}
		if limiter.Allow(key) {
			c.Next()
			return
		}

		wait := limiter.RetryAfter(key)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many changes, try again shortly"})
	}
}
