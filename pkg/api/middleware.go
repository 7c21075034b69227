package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// throttleIdle is how long a client bucket may sit unused before it is
// evicted during a sweep.
const throttleIdle = 3 * time.Minute

// Throttle applies a per-client token bucket. Sandbox runs are expensive,
// so the throttle bounds how fast a single client can queue container work.
// Stale buckets are evicted inline during lookups instead of by a
// background sweeper: an idle gateway holds no extra goroutines.
type Throttle struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	rps       rate.Limit
	burst     int
	nextSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle creates a throttle allowing rps sustained requests per second
// with the given burst per client.
func NewThrottle(rps, burst int) *Throttle {
	return &Throttle{
		clients: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow takes one token from the client's bucket, creating it on first
// sight and sweeping idle buckets at most once per idle window.
func (t *Throttle) allow(client string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.After(t.nextSweep) {
		for key, bucket := range t.clients {
			if now.Sub(bucket.lastSeen) > throttleIdle {
				delete(t.clients, key)
			}
		}
		t.nextSweep = now.Add(throttleIdle)
	}

	bucket, ok := t.clients[client]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.clients[client] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

// Wrap is the gateway's request middleware: every request gets an
// X-Request-ID (the caller's is preserved) before the throttle is applied,
// so even rejected requests are traceable. A nil throttle disables rate
// limiting.
func Wrap(throttle *Throttle, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		if throttle != nil && !throttle.allow(clientKey(r)) {
			writeThrottled(w, "5")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey buckets requests by remote IP, tolerating addresses without a
// port and bracketed IPv6 forms.
func clientKey(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.Trim(r.RemoteAddr, "[]")
	}
	return ip
}
