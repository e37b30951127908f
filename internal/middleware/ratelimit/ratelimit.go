// Package ratelimit throttles ledger writes per client.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window   = time.Minute
	staleAge = 10 * time.Minute
)

// Limiter admits at most WritesPerMinute unsafe requests per client in
// fixed one-minute windows. Reads are never counted.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	limit   int
	now     func() time.Time

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	start time.Time
	seen  time.Time
	count int
}

type Config struct {
	WritesPerMinute int
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{WritesPerMinute: 60, CleanupInterval: 5 * time.Minute}
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.WritesPerMinute <= 0 {
		cfg.WritesPerMinute = def.WritesPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	l := &Limiter{
		windows: make(map[string]*clientWindow),
		limit:   cfg.WritesPerMinute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweep(cfg.CleanupInterval)
	return l
}

// Allow counts one write from client. When the client is over its limit it
// returns false and the time left until its window resets.
func (l *Limiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[client]
	if w == nil || now.Sub(w.start) >= window {
		l.windows[client] = &clientWindow{start: now, seen: now, count: 1}
		return true, 0
	}
	w.seen = now
	w.count++
	if w.count <= l.limit {
		return true, 0
	}
	l.rejected.Add(1)
	return false, w.start.Add(window).Sub(now)
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.forgetIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) forgetIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-staleAge)
	for client, w := range l.windows {
		if w.seen.Before(cutoff) {
			delete(l.windows, client)
		}
	}
}

// Stop ends the sweep goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	Rejected int64
	Clients  int
}

func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	clients := len(l.windows)
	l.mu.Unlock()
	return Metrics{Rejected: l.rejected.Load(), Clients: clients}
}

// Middleware rejects over-limit writes with 429 and a Retry-After header in
// whole seconds. onLimit writes the body; nil falls back to plain text.
func (l *Limiter) Middleware(clientOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isRead(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.Allow(clientOf(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}

func isRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
