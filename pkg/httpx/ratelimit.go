package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"
)

// RateLimitConfig allows Requests per Window, with bursts up to Burst.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Limit profiles for the endpoint families. Each can be overridden with
// IHA_RATELIMIT_<NAME>_REQUESTS, _WINDOW (a Go duration) and _BURST.
var (
	// TokenLimit guards credential checking at the token endpoint.
	TokenLimit = RateLimitFromEnv("TOKEN", RateLimitConfig{Requests: 30, Window: time.Minute, Burst: 10})
	// AuthorizeLimit guards the authorization endpoint.
	AuthorizeLimit = RateLimitFromEnv("AUTHORIZE", RateLimitConfig{Requests: 60, Window: time.Minute, Burst: 20})
	// PublicLimit covers discovery, jwks and userinfo.
	PublicLimit = RateLimitFromEnv("PUBLIC", RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 200})
)

// RateLimitFromEnv overlays IHA_RATELIMIT_<name>_* variables onto def.
// Unparseable or non-positive values are ignored.
func RateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	prefix := "IHA_RATELIMIT_" + strings.ToUpper(name) + "_"
	cfg := def

	if v, ok := os.LookupEnv(prefix + "REQUESTS"); ok {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			cfg.Requests = n
		}
	}
	if v, ok := os.LookupEnv(prefix + "WINDOW"); ok {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			cfg.Window = d
		}
	}
	if v, ok := os.LookupEnv(prefix + "BURST"); ok {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			cfg.Burst = n
		}
	}
	return cfg
}

// KeyFunc groups requests into rate limit buckets. An empty key bypasses
// limiting.
type KeyFunc func(*http.Request) string

// ClientIP returns the caller address, preferring the first X-Forwarded-For
// hop, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIDKey returns the OAuth2 client id from HTTP Basic auth or the
// client_id parameter.
func ClientIDKey(r *http.Request) string {
	if id, _, ok := r.BasicAuth(); ok {
		return id
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.FormValue("client_id")
}

// JoinKeys concatenates the non-empty keys of fns with ":".
func JoinKeys(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, ":")
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per key. Buckets idle for longer than
// idleAfter are swept on the next insert after sweepEvery.
type buckets struct {
	mu        sync.Mutex
	byKey     map[string]*bucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
}

const sweepEvery = 5 * time.Minute

func newBuckets(cfg RateLimitConfig) *buckets {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &buckets{
		byKey:     make(map[string]*bucket),
		limit:     rate.Limit(float64(cfg.Requests) / window.Seconds()),
		burst:     max(cfg.Burst, 1),
		idleAfter: max(window, sweepEvery),
		lastSweep: time.Now(),
	}
}

func (b *buckets) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bk, ok := b.byKey[key]; ok {
		bk.lastSeen = now
		return bk.limiter
	}

	if now.Sub(b.lastSweep) >= sweepEvery {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) > b.idleAfter {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk := &bucket{limiter: rate.NewLimiter(b.limit, b.burst), lastSeen: now}
	b.byKey[key] = bk
	return bk.limiter
}

// RateLimit rejects requests over cfg for the bucket chosen by key.
func RateLimit(cfg RateLimitConfig, key KeyFunc) Middleware {
	b := newBuckets(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Debug("rate limit: no key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			res := b.get(k, now).ReserveN(now, 1)
			if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
				res.CancelAt(now)

				retryAfter := max(int(delay.Round(time.Second).Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k,
					"retry_after", retryAfter,
				)
				WriteOAuth2Error(w, http.StatusTooManyRequests, "temporarily_unavailable",
					"too many requests, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by caller address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, ClientIP)
}

// RateLimitByClient limits by caller address plus client id, so one noisy
// client behind a shared address does not starve the others.
func RateLimitByClient(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, JoinKeys(ClientIP, ClientIDKey))
}
