package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
	pnet "opscreen/internal/platform/net"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a keyed caller may proceed.
// retryAfter is a hint for the Retry-After header when denied
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// RateLimitOptions configures the per client request limiter
type RateLimitOptions struct {
	// RequestsPerMinute is the sustained refill rate per key
	RequestsPerMinute int
	// Burst is the bucket depth; defaults to RequestsPerMinute when 0
	Burst int
	// TrustedProxies controls X-Forwarded-For handling for keying
	TrustedProxies TrustedProxies
	// ExemptPaths are matched by exact path and skip limiting (health checks)
	ExemptPaths []string
}

// localLimiter keeps one token bucket per key in process memory.
// Idle buckets are evicted after idleTTL so the map cannot grow unbounded
type localLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	buckets map[string]*bucketEntry
}

type bucketEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLocalLimiter builds a per process token bucket limiter
func NewLocalLimiter(perMinute, burst int) Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &localLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		buckets: make(map[string]*bucketEntry),
	}
}

func (l *localLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.buckets[key]
	if !ok {
		e = &bucketEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.seen = now

	if len(l.buckets) > 4096 {
		for k, v := range l.buckets {
			if now.Sub(v.seen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
	}

	res := e.lim.Reserve()
	if !res.OK() {
		return false, time.Minute, nil
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

// redisLimiter implements a fixed window counter shared across replicas.
// INCR then EXPIRE on first hit; coarser than the local token bucket but
// consistent when several API pods sit behind one address
type redisLimiter struct {
	rdb       redis.UniversalClient
	perWindow int
	window    time.Duration
	prefix    string
}

// NewRedisLimiter builds a shared fixed window limiter over an existing client
func NewRedisLimiter(rdb redis.UniversalClient, perMinute int) Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &redisLimiter{rdb: rdb, perWindow: perMinute, window: time.Minute, prefix: "rg:"}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	bucket := now.Truncate(l.window)
	k := l.prefix + key + ":" + bucket.Format("150405")

	pipe := l.rdb.TxPipeline()
	cnt := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if cnt.Val() > int64(l.perWindow) {
		return false, bucket.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

// RateLimit enforces the limiter keyed by resolved client IP.
// Denials get 429 with a Retry-After header; limiter backend failures fail
// open with a warn log so a dead Redis cannot take screening down with it
func RateLimit(l Limiter, opt RateLimitOptions, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(opt.ExemptPaths))
	for _, p := range opt.ExemptPaths {
		exempt[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, skip := exempt[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}
			key := ClientIP(r, opt.TrustedProxies)
			ok, retryAfter, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.C(r.Context()).Warn().Err(err).Msg("rate limiter backend failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				secs := int(retryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				status, body := pnet.Error(
					perr.TooManyRequestsf(secs, "request rate exceeded, retry after %ds", secs),
					pnet.RequestID(r.Context()),
				)
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
