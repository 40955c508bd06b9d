package restapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/models"
	"fleetconsole.org/livemap/internal/utils"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a client's limiter survives without requests.
const idleLimiterTTL = 10 * time.Minute

// RateLimitMiddleware provides per-client rate limiting keyed by client IP
type RateLimitMiddleware struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rateLimit rate.Limit
	burstSize int

	cleanupTick *time.Ticker
	stop        chan struct{}
	stopOnce    sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows ratePerInterval requests per interval per client,
// with bursts of the same size. Zero blocks everything; a negative rate
// disables limiting.
func NewRateLimiter(ratePerInterval int, interval time.Duration) *RateLimitMiddleware {
	var limit rate.Limit
	switch {
	case ratePerInterval < 0:
		limit = rate.Inf
	case ratePerInterval == 0:
		limit = 0
	default:
		limit = rate.Every(interval / time.Duration(ratePerInterval))
	}

	rl := &RateLimitMiddleware{
		limiters:    make(map[string]*clientLimiter),
		rateLimit:   limit,
		burstSize:   ratePerInterval,
		cleanupTick: time.NewTicker(time.Minute),
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// NewRateLimitMiddleware is NewRateLimiter as plain middleware.
func NewRateLimitMiddleware(ratePerInterval int, interval time.Duration) func(http.Handler) http.Handler {
	return NewRateLimiter(ratePerInterval, interval).Handler
}

func (rl *RateLimitMiddleware) getLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
		rl.limiters[client] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.rateLimit == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.getLimiter(utils.ClientIP(r)).Allow() {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	retryAfter := time.Second
	if rl.rateLimit == 0 {
		retryAfter = time.Hour
	} else if perToken := time.Duration(float64(time.Second) / float64(rl.rateLimit)); perToken > retryAfter {
		retryAfter = perToken
	}

	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
	w.Header().Set("X-RateLimit-Remaining", "0")
	writeJSON(w, http.StatusTooManyRequests,
		models.NewResponse(http.StatusTooManyRequests, nil, "Rate limit exceeded. Please try again later."))
}

// cleanup drops limiters for clients that have gone quiet.
func (rl *RateLimitMiddleware) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.evictIdle(time.Now().Add(-idleLimiterTTL))
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimitMiddleware) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, client)
		}
	}
}

func (rl *RateLimitMiddleware) clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Stop stops the cleanup goroutine
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTick.Stop()
		close(rl.stop)
	})
}
