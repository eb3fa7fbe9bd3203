// Package ratelimit provides per-client-IP token bucket limiting for Gin.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

// New creates a Limiter allowing rps requests per second with the given
// burst. Idle buckets are swept until ctx is cancelled.
func New(ctx context.Context, rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
	go l.sweep(ctx)
	return l
}

// Allow reports whether a request from ip may proceed now.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"errors": gin.H{"request": gin.H{"msg": "rate limit exceeded"}},
			})
			return
		}
		c.Next()
	}
}

func (l *Limiter) sweep(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if time.Since(v.lastSeen) > idleTTL {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}
