package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged against.
type KeyFunc func(c *gin.Context) string

// ByIP charges requests to the client IP.
func ByIP(c *gin.Context) string { return c.ClientIP() }

// ByUser charges requests to the authenticated user and falls back to the
// client IP before Auth has run.
func ByUser(c *gin.Context) string {
	if uid := GetUserID(c); uid != "" {
		return "u:" + uid
	}
	return "ip:" + c.ClientIP()
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	return RateLimitBy(r, b, ByIP)
}

// RateLimitBy provides token-bucket rate limiting keyed by key.
func RateLimitBy(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	limiters := &sync.Map{}

	// Drop buckets idle for 10 minutes.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-10 * time.Minute).UnixNano()
			limiters.Range(func(k, v interface{}) bool {
				if v.(*keyedLimiter).lastSeen.Load() < cutoff {
					limiters.Delete(k)
				}
				return true
			})
		}
	}()

	getLimiter := func(k string) *rate.Limiter {
		v, _ := limiters.LoadOrStore(k, &keyedLimiter{limiter: rate.NewLimiter(r, b)})
		kl := v.(*keyedLimiter)
		kl.lastSeen.Store(time.Now().UnixNano())
		return kl.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
