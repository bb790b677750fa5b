package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/crovest/command-center/internal/config"
)

// tokenBucket is a token-bucket limiter for a single client.
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      int
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{rate: rate, burst: burst, tokens: float64(burst), lastRefill: now}
}

// allow consumes one token. When the bucket is empty it returns false and
// the time until the next token is available.
func (tb *tokenBucket) allow(now time.Time) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(tb.tokens+elapsed*tb.rate, float64(tb.burst))
		tb.lastRefill = now
	}

	if tb.tokens < 1.0 {
		wait := time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
		return false, wait
	}
	tb.tokens--
	return true, 0
}

// rateLimiter keeps one bucket per client address. The least recently seen
// clients are evicted once MaxClients buckets exist.
type rateLimiter struct {
	rate    float64
	burst   int
	buckets *lru.Cache[string, *tokenBucket]
	mu      sync.Mutex
	now     func() time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) (*rateLimiter, error) {
	size := cfg.MaxClients
	if size <= 0 {
		size = config.DefaultRateLimitMaxClients
	}
	buckets, err := lru.New[string, *tokenBucket](size)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return &rateLimiter{rate: cfg.Rate, burst: cfg.Burst, buckets: buckets, now: time.Now}, nil
}

func (rl *rateLimiter) bucket(client string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets.Get(client); ok {
		return b
	}
	b := newTokenBucket(rl.rate, rl.burst, rl.now())
	rl.buckets.Add(client, b)
	return b
}

// middleware answers 429 with Retry-After once a client's bucket is empty.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		ok, wait := rl.bucket(client).allow(rl.now())
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			log.Debug().Str("client", client).Str("path", r.URL.Path).Msg("rate limited")
			w.Header().Set("Retry-After", fmt.Sprint(secs))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the request's remote host, already rewritten by RealIP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
