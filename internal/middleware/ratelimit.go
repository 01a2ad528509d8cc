package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
	"github.com/Meridian-Network/marketplace_layer/internal/httputil"
)

// RateLimiter throttles requests per client. The client key is the
// authenticated caller when present, the remote address otherwise.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	clients  map[string]*clientLimiter
	lastSeen time.Duration
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given
// burst per client.
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 25
	}
	if burst <= 0 {
		burst = perSecond * 2
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		clients:  make(map[string]*clientLimiter),
		lastSeen: 10 * time.Minute,
	}
}

// Handler returns the middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := CallerFromContext(r.Context())
		if key == "" {
			key = remoteHost(r)
		}
		if !rl.allow(key) {
			httputil.WriteError(w, http.StatusTooManyRequests, errors.RateLimitExceeded(int(rl.limit), "second"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, ok := rl.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.seen = now

	// Opportunistic cleanup of idle clients.
	if len(rl.clients) > 1024 {
		for k, c := range rl.clients {
			if now.Sub(c.seen) > rl.lastSeen {
				delete(rl.clients, k)
			}
		}
	}

	return client.limiter.Allow()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
