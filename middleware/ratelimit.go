package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the per-client map; it is reset when exceeded
const maxLimiters = 10000

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      logrus.FieldLogger
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst
func NewRateLimiter(rps float64, burst int, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) >= maxLimiters {
		rl.limiters = make(map[string]*rate.Limiter)
	}

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.getLimiter(key).Allow() {
			if rl.log != nil {
				rl.log.WithFields(logrus.Fields{
					"client_ip": key,
					"path":      c.Request.URL.Path,
					"method":    c.Request.Method,
				}).Warn("rate limit exceeded")
			}
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
			return
		}
		c.Next()
	}
}
