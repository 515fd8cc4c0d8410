package web

import (
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per key. Only the most recently seen
// maxKeys keys keep their bucket; an evicted key starts over with a full one.
type RateLimiter struct {
	mu     sync.Mutex
	limits *lru.Cache
	rate   rate.Limit
	burst  int
}

// NewRateLimiter creates a limiter allowing perSecond sustained requests and
// bursts of up to burst per key.
func NewRateLimiter(perSecond float64, burst, maxKeys int) *RateLimiter {
	return &RateLimiter{
		limits: lru.New(maxKeys),
		rate:   rate.Limit(perSecond),
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limits.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limits.Add(key, limiter)
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}
