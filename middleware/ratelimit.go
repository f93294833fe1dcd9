package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/bumpspot/server/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per-client-IP token bucket sized from the
// security config. Buckets idle longer than RateLimitIdleTTL are
// evicted so the map stays bounded under IP churn.
func RateLimit(sec config.SecurityConfig) gin.HandlerFunc {
	rps := rate.Limit(sec.RateLimitRPS)
	if rps <= 0 {
		rps = 100
	}
	burst := sec.RateLimitBurst
	if burst <= 0 {
		burst = 200
	}
	idleTTL := sec.RateLimitIdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}

	var mu sync.Mutex
	buckets := make(map[string]*clientBucket)

	go func() {
		ticker := time.NewTicker(idleTTL / 2)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-idleTTL)
			mu.Lock()
			for ip, b := range buckets {
				if b.lastSeen.Before(cutoff) {
					delete(buckets, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		b, ok := buckets[ip]
		if !ok {
			b = &clientBucket{limiter: rate.NewLimiter(rps, burst)}
			buckets[ip] = b
		}
		b.lastSeen = time.Now()
		mu.Unlock()

		if !b.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
