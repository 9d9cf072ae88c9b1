package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/iha/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClientIP(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.ClientIP(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.ClientIP(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.ClientIP(req))
	})
}

func TestClientIDKey(t *testing.T) {
	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", nil)
		req.SetBasicAuth("test", "secret")
		require.Equal(t, "test", httpx.ClientIDKey(req))
	})

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"client_id": {"web"}}
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.Equal(t, "web", httpx.ClientIDKey(req))
	})

	t.Run("query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?client_id=spa", nil)
		require.Equal(t, "spa", httpx.ClientIDKey(req))
	})
}

func TestJoinKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?client_id=test", nil)
	req.RemoteAddr = "10.0.0.1:1"

	require.Equal(t, "10.0.0.1:test", httpx.JoinKeys(httpx.ClientIP, httpx.ClientIDKey)(req))

	empty := func(*http.Request) string { return "" }
	require.Equal(t, "10.0.0.1", httpx.JoinKeys(httpx.ClientIP, empty)(req))
}

func TestRateLimit(t *testing.T) {
	cfg := httpx.RateLimitConfig{Requests: 3, Window: time.Hour, Burst: 3}

	t.Run("allows burst then rejects", func(t *testing.T) {
		h := httpx.RateLimitByIP(cfg)(okHandler)

		for i := range 3 {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1:1000"
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))

		var body httpx.ErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "temporarily_unavailable", body.Error)
	})

	t.Run("separate buckets per key", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{Requests: 1, Window: time.Hour, Burst: 1})(okHandler)

		for _, ip := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.3:1"} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = ip
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, ip)
		}
	})

	t.Run("client and ip buckets", func(t *testing.T) {
		h := httpx.RateLimitByClient(httpx.RateLimitConfig{Requests: 1, Window: time.Hour, Burst: 1})(okHandler)

		send := func(client string) int {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/oauth2/token", nil)
			req.RemoteAddr = "192.0.2.9:1"
			req.SetBasicAuth(client, "x")
			h.ServeHTTP(rec, req)
			return rec.Code
		}

		require.Equal(t, http.StatusOK, send("a"))
		require.Equal(t, http.StatusOK, send("b"))
		require.Equal(t, http.StatusTooManyRequests, send("a"))
	})

	t.Run("empty key bypasses", func(t *testing.T) {
		h := httpx.RateLimit(httpx.RateLimitConfig{Requests: 1, Window: time.Hour, Burst: 1},
			func(*http.Request) string { return "" })(okHandler)

		for range 5 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{Requests: 10, Window: time.Minute, Burst: 5}

	t.Run("defaults when unset", func(t *testing.T) {
		require.Equal(t, def, httpx.RateLimitFromEnv("UNSET_PROFILE", def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("IHA_RATELIMIT_CUSTOM_REQUESTS", "100")
		t.Setenv("IHA_RATELIMIT_CUSTOM_WINDOW", "30s")
		t.Setenv("IHA_RATELIMIT_CUSTOM_BURST", "7")

		cfg := httpx.RateLimitFromEnv("custom", def)
		require.Equal(t, 100, cfg.Requests)
		require.Equal(t, 30*time.Second, cfg.Window)
		require.Equal(t, 7, cfg.Burst)
	})

	t.Run("ignores bad values", func(t *testing.T) {
		t.Setenv("IHA_RATELIMIT_BAD_REQUESTS", "lots")
		t.Setenv("IHA_RATELIMIT_BAD_WINDOW", "-1s")
		t.Setenv("IHA_RATELIMIT_BAD_BURST", "0")

		require.Equal(t, def, httpx.RateLimitFromEnv("BAD", def))
	})
}

func BenchmarkRateLimit(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{Requests: 1 << 30, Window: time.Second, Burst: 1 << 30})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	for b.Loop() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
