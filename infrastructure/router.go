// infrastructure/router.go
package infrastructure

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	AllowedOrigins []string
	// RateLimitRPS limits POST requests per client IP; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	Metrics        http.Handler
}

func NewRouter(h *VideoHandlers, opts RouterOptions) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware(opts.AllowedOrigins))

	limited := []gin.HandlerFunc{}
	if opts.RateLimitRPS > 0 {
		limited = append(limited, newClientRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware())
	}

	router.GET("/", h.RootHandler)
	router.GET("/health", h.HealthHandler)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.POST("/highlights", append(limited, h.ExtractHighlightsHandler)...)
	router.POST("/generate", append(limited, h.GenerateVideosHandler)...)
	router.GET("/generate/:job_id/status", h.JobStatusHandler)
	router.GET("/generate/:job_id/stream", h.JobStreamHandler)

	router.GET("/jobs", h.ListJobsHandler)
	router.DELETE("/jobs/:job_id", h.DeleteJobHandler)
	router.GET("/queue/status", h.QueueStatusHandler)

	router.GET("/files/*path", h.ServeFileHandler)
	router.GET("/download/*path", h.DownloadFileHandler)

	return router
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := map[string]bool{}
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case allowAll:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case set[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// clientRateLimiter keeps one token bucket per client IP and forgets idle clients.
type clientRateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientRateLimiter(rps float64, burst int) *clientRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: map[string]*clientLimiter{},
		swept:   time.Now(),
	}
}

func (l *clientRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > time.Minute {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > 3*time.Minute {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (l *clientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := strings.TrimSpace(c.ClientIP())
		if !l.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
