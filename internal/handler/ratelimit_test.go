package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginLimiterBlocksAfterMaxFailures(t *testing.T) {
	env := newTestEnv(t)
	bad := model.LoginRequest{Username: testUsername, Password: "wrong-password"}

	for i := 0; i < 20; i++ {
		w := env.do(http.MethodPost, "/api/auth/login", bad)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}

	w := env.do(http.MethodPost, "/api/auth/login", bad)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp model.RateLimitErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, CodeRateLimitExceeded, resp.Code)
	assert.Equal(t, int64(15*60), resp.RetryAfter)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Equal(t, "20", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// the correct password is refused too while the window is open
	w = env.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: testUsername, Password: testPassword})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	env.clock.t = env.clock.t.Add(15 * time.Minute)
	env.login(t)
}

func TestLoginLimiterIgnoresSuccessfulLogins(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 30; i++ {
		env.login(t)
	}

	bad := model.LoginRequest{Username: testUsername, Password: "wrong-password"}
	for i := 0; i < 20; i++ {
		w := env.do(http.MethodPost, "/api/auth/login", bad)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}
	w := env.do(http.MethodPost, "/api/auth/login", bad)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	env := newTestEnv(t)
	bad := model.LoginRequest{Username: testUsername, Password: "wrong-password"}

	for i := 0; i < 21; i++ {
		env.do(http.MethodPost, "/api/auth/login", bad)
	}

	req := newRequest(http.MethodPost, "/api/auth/login")
	req.RemoteAddr = "198.51.100.1:40000"
	w := serve(env.router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginLimiterIgnoresForwardingHeadersFromUntrustedPeer(t *testing.T) {
	env := newTestEnv(t)

	var limited int
	for i := 0; i < 40; i++ {
		body := strings.NewReader(`{"username":"admin","password":"wrong-password"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = testIP + ":40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", i/250, i%250+1))
		req.Header.Set("CF-Connecting-IP", fmt.Sprintf("198.18.0.%d", i+1))

		w := serve(env.router, req)
		if i < 20 {
			require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
			continue
		}
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 20, limited)
}

func TestLoginLimiterUsesForwardedForFromTrustedProxy(t *testing.T) {
	env := newTestEnv(t, func(deps *RouterDeps, _ *db.Memory) {
		deps.TrustedProxies = []string{"10.0.0.0/8"}
	})
	bad := `{"username":"admin","password":"wrong-password"}`

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(bad))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.1.2.3:5000"
		req.Header.Set("X-Forwarded-For", client)
		return serve(env.router, req).Code
	}

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusUnauthorized, send("203.0.113.50"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.50"))
	assert.Equal(t, http.StatusUnauthorized, send("203.0.113.51"))
}

func TestRateLimitHeadersOnAllowedRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "1000", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, env.clock.t.Add(15*time.Minute).Unix(), reset)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	env := newTestEnv(t, func(deps *RouterDeps, _ *db.Memory) {
		deps.Limiters = ratelimit.NewPresetLimiters(failingStore{}, true)
	})

	for i := 0; i < 15; i++ {
		w := env.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: testUsername, Password: "wrong-password"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestSetupLimiter(t *testing.T) {
	env := newTestEnv(t)
	req := model.SetupAdminRequest{SetupToken: "wrong", Username: "owner", Password: "long-enough"}

	for i := 0; i < 10; i++ {
		w := env.do(http.MethodPost, "/api/setup/admin", req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.do(http.MethodPost, "/api/setup/admin", req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
