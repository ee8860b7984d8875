package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window per-IP request counter. Imports are slow
// and heavy, so the import route gets a much stricter limiter than the
// read endpoints.
type RateLimiter struct {
	mu           sync.Mutex
	requestCount map[string]int
	limit        int
	window       time.Duration
	lastReset    time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requestCount: make(map[string]int),
		limit:        limit,
		window:       window,
		lastReset:    time.Now(),
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.ClientIP()
		}

		rl.mu.Lock()
		if time.Since(rl.lastReset) > rl.window {
			rl.requestCount = make(map[string]int)
			rl.lastReset = time.Now()
		}
		rl.requestCount[ip]++
		exceeded := rl.requestCount[ip] > rl.limit
		rl.mu.Unlock()

		if exceeded {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "Rate limit exceeded. Please wait before making more requests.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Global rate limiter instances for different endpoints
var (
	GlobalRateLimiter = NewRateLimiter(100, 1*time.Minute) // 100 requests per minute
	ImportRateLimiter = NewRateLimiter(5, 1*time.Minute)   // ledger imports are expensive
	AdminRateLimiter  = NewRateLimiter(20, 1*time.Minute)  // rule/billing administration
)
