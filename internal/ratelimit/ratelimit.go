// Package ratelimit provides per-IP rate limiting middleware for the
// gateway API.
package ratelimit

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config tunes the token bucket kept for each client.
type Config struct {
	// RequestsPerMinute is the sustained rate allowed per client.
	RequestsPerMinute int
	// BurstSize caps how far a client can run ahead of the sustained rate.
	BurstSize int
	// CleanupInterval is how often idle buckets are swept.
	CleanupInterval time.Duration
}

// DefaultConfig allows one request per second with short bursts.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
	}
}

type bucket struct {
	tokens     float64
	refilledAt time.Time
}

// Limiter tracks a token bucket per client key.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweep goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow consumes one token from key's bucket, reporting whether the request
// may proceed. New clients start with a full burst allowance.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{
			tokens:     float64(l.cfg.BurstSize) - 1,
			refilledAt: now,
		}
		return true
	}

	perSecond := float64(l.cfg.RequestsPerMinute) / 60.0
	refill := now.Sub(b.refilledAt).Seconds() * perSecond
	b.tokens = math.Min(b.tokens+refill, float64(l.cfg.BurstSize))
	b.refilledAt = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets that have been idle long enough to be full again.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * time.Minute)
			l.mu.Lock()
			for key, b := range l.buckets {
				if b.refilledAt.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Middleware returns a Gin middleware that rate limits by client IP. A
// counterpart gateway fanning out quote requests gets a 429 envelope rather
// than an open connection.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"errors":  []string{"rate limit exceeded"},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
