package admission

import (
	"sync"

	"golang.org/x/time/rate"
)

// bucketKey scopes a rate limit bucket to one route and one caller
// identity (an AuthorID, or an IP address for unauthenticated routes).
type bucketKey struct {
	route    string
	identity string
}

// RateLimiter holds one token bucket per (route, identity) pair,
// created lazily on first use.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewRateLimiter builds a limiter where each bucket refills at rps
// tokens/sec up to burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[bucketKey]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Allow reports whether route+identity may proceed, consuming a token
// if so.
func (l *RateLimiter) Allow(route, identity string) bool {
	return l.bucket(route, identity).Allow()
}

func (l *RateLimiter) bucket(route, identity string) *rate.Limiter {
	key := bucketKey{route: route, identity: identity}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = b
	}
	return b
}
