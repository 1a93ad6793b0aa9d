package tracker

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// connRate and connBurst bound how fast a single IP may open new
	// tracker connections. Over-limit connections are dropped at accept,
	// before any frame is read.
	connRate  = rate.Limit(1) // sustained connections per second per IP
	connBurst = 10

	// limiterMaxAge is how long an idle IP's bucket survives before the
	// prune pass drops it.
	limiterMaxAge   = 10 * time.Minute
	limiterPruneGap = 5 * time.Minute
)

// ipLimiter hands out one token bucket per remote IP. It has its own lock
// because the mux accept path and the prune ticker both touch it.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
	}
}

// Allow reports whether a new connection from ip is within its budget.
func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.lim.Allow()
}

// prune drops buckets idle since before deadline.
func (l *ipLimiter) prune(deadline time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, b := range l.buckets {
		if b.lastSeen.Before(deadline) {
			delete(l.buckets, ip)
		}
	}
}

// pruneLoop periodically prunes idle buckets until done is closed.
func (l *ipLimiter) pruneLoop(done <-chan struct{}) {
	ticker := time.NewTicker(limiterPruneGap)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.prune(time.Now().Add(-limiterMaxAge))
		}
	}
}
