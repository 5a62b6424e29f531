package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"snapify/pkg/utils"
)

const (
	DefaultRequests = 20 // Steady state rate (token refilling speed)
	BurstSize       = 50 // Max burst capacity (bucket size) for traffic spikes

	// VisitorTTL is how long an idle IP keeps its bucket.
	VisitorTTL      = 5 * time.Minute
	CleanupInterval = 3 * time.Minute
)

type RateLimitOptions struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a token bucket per client IP.
type RateLimiter struct {
	opts  RateLimitOptions
	limit rate.Limit

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.Requests <= 0 {
		opts.Requests = DefaultRequests
	}
	if opts.Burst <= 0 {
		opts.Burst = BurstSize
	}
	return &RateLimiter{
		opts:     opts,
		limit:    rate.Limit(float64(opts.Requests) / opts.Window.Seconds()),
		visitors: make(map[string]*visitor),
	}
}

// StartCleanup removes idle visitors until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.prune(time.Now())
			}
		}
	}()
}

func (rl *RateLimiter) prune(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > VisitorTTL {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.opts.Burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Middleware blocks excessive requests with a 429 JSON response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.opts.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.get(utils.GetRealIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			utils.WriteError(
				w,
				http.StatusTooManyRequests,
				utils.ErrRequestRateLimitExceeded,
				"Too many requests. Please wait a moment.",
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
