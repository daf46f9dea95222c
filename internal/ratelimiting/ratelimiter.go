package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

// Idle buckets are dropped after this long; a dropped bucket comes back full
const bucketIdleTTL = 30 * time.Minute

type tokenBucketRateLimiter struct {
	buckets         *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond float64
	burstSize       int
}

func (l *tokenBucketRateLimiter) Consume(key string) bool {
	bucket, _ := l.buckets.GetOrSet(key, rate.NewLimiter(rate.Limit(l.refillPerSecond), l.burstSize))
	return bucket.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// NewTokenBucketRateLimiter keeps one token bucket per key. The returned
// function stops the cleanup of idle buckets.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	buckets := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](bucketIdleTTL),
	)
	go buckets.Start()

	return &tokenBucketRateLimiter{
		buckets:         buckets,
		refillPerSecond: float64(refillPerSecond),
		burstSize:       int(burstSize),
	}, buckets.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (l *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return l.limiter.Consume(l.keyFunc(r))
}

func (l *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return l.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ip: %s", host)
}

func UserIDKeyFunc(r *http.Request) string {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = "<missing>"
	}
	return fmt.Sprintf("user-id: %.50s", userID)
}
