// Package ratelimit throttles mutating requests per client address using a
// fixed one-minute window.
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
	window = time.Minute
	// idle clients are forgotten after this long
	retention = 10 * time.Minute
)

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods limits throttling to these HTTP methods. Empty means all.
	Methods []string
}

// DefaultConfig throttles the methods that change data.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost, http.MethodPut, http.MethodDelete},
	}
}

type bucket struct {
	opened time.Time
	used   int
}

// Limiter counts requests per client IP.
type Limiter struct {
	limit   int
	methods map[string]struct{}
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	rejected atomic.Int64
	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter and its sweeper goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		limit:   config.RequestsPerMinute,
		methods: make(map[string]struct{}, len(config.Methods)),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	for _, m := range config.Methods {
		rl.methods[m] = struct{}{}
	}
	go rl.sweep(config.CleanupInterval)
	return rl
}

// Allow records a request from clientIP and reports whether it fits the
// current window.
func (rl *Limiter) Allow(clientIP string) bool {
	ok, _ := rl.take(clientIP)
	return ok
}

// take is Allow plus the time left until the client's window reopens.
func (rl *Limiter) take(clientIP string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[clientIP]
	if b == nil || now.Sub(b.opened) >= window {
		rl.buckets[clientIP] = &bucket{opened: now, used: 1}
		return true, 0
	}
	b.used++
	if b.used <= rl.limit {
		return true, 0
	}
	rl.rejected.Add(1)
	return false, b.opened.Add(window).Sub(now)
}

func (rl *Limiter) throttles(method string) bool {
	if len(rl.methods) == 0 {
		return true
	}
	_, ok := rl.methods[method]
	return ok
}

func (rl *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.forgetIdle()
		}
	}
}

// forgetIdle drops clients whose window opened before the retention cutoff
// and returns how many went.
func (rl *Limiter) forgetIdle() int {
	cutoff := rl.now().Add(-retention)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, b := range rl.buckets {
		if b.opened.Before(cutoff) {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

type Metrics struct {
	Rejected    int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		Rejected:    rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects throttled requests with Retry-After set to the seconds
// left in the client's window. onLimit writes the body; when nil a plain 429
// is sent.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.throttles(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.take(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Too many requests, try again shortly.", http.StatusTooManyRequests)
		})
	}
}
