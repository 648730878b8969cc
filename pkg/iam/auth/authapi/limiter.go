package authapi

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// idleLimiterTTL drops buckets of clients that went quiet
const idleLimiterTTL = 10 * time.Minute

// IPLimiter is a token bucket per client IP. Buckets live in a TTL cache
// so memory stays bounded by the number of recently seen clients.
type IPLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *ttlcache.Cache[string, *rate.Limiter]
}

// NewIPLimiter allows perMinute requests per IP with the given burst.
// perMinute <= 0 disables limiting and keeps no buckets.
func NewIPLimiter(perMinute, burst int) *IPLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &IPLimiter{limit: rate.Inf, burst: burst}
	if perMinute <= 0 {
		return l
	}
	l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	l.buckets = ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](idleLimiterTTL),
		ttlcache.WithCapacity[string, *rate.Limiter](100_000),
	)
	go l.buckets.Start()
	return l
}

// Enabled is false for a limiter that lets everything through
func (l *IPLimiter) Enabled() bool {
	return l.buckets != nil
}

// Allow consumes one token for ip
func (l *IPLimiter) Allow(ip string) bool {
	if !l.Enabled() {
		return true
	}
	if ip == "" {
		ip = "unknown"
	}
	item, _ := l.buckets.GetOrSet(ip, rate.NewLimiter(l.limit, l.burst))
	return item.Value().Allow()
}

// Close stops the cache janitor
func (l *IPLimiter) Close() {
	if l.Enabled() {
		l.buckets.Stop()
	}
}
