package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataframehub/internal/domain"
)

func newLimitedHandler(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := NewRateLimiter(ctx, RateLimitConfig{RequestsPerSecond: rps, Burst: burst})
	return rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	handler := newLimitedHandler(t, 100, 10)

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	handler := newLimitedHandler(t, 1, 2)

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, float64(429), body["code"], 0.001)
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	handler := newLimitedHandler(t, 1, 1)

	request := func(remote string, principal string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if principal != "" {
			req = req.WithContext(domain.WithPrincipal(req.Context(), domain.ContextPrincipal{Name: principal}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:5678", ""), "port does not identify the client")
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1234", ""))

	// Principals get their own bucket regardless of address.
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", "alice"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.9:1234", "alice"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-an-address"
	assert.Equal(t, "ip:not-an-address", clientKey(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.RemoteAddr = "10.0.0.1:99"
	assert.Equal(t, "ip:10.0.0.1", clientKey(req))
}
