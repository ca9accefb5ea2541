package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter is a fixed one-minute window counter per client key.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	rejected     int64

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow checks if a request for the given key should be allowed
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[key]
	if !exists || now.Sub(client.windowStart) >= time.Minute {
		rl.clients[key] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	if client.requests > rl.requestsPerMinute {
		atomic.AddInt64(&rl.rejected, 1)
		return false
	}
	return true
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries idle for more than 10 minutes
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * time.Minute)
	for key, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Rejected returns how many requests have been refused.
func (rl *Limiter) Rejected() int64 {
	return atomic.LoadInt64(&rl.rejected)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware limits requests by the key extractKey returns.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractKey(r)) {
				w.Header().Set("Retry-After", "60")
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
