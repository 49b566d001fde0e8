package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSetsCookies(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: testUsername, Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.AuthUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, env.userID, resp.User.ID)
	assert.Equal(t, testUsername, resp.User.Username)

	access := findCookie(w, "grubtech_auth")
	require.NotNil(t, access)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, 900, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteNoneMode, access.SameSite)

	refresh := findCookie(w, "grubtech_refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, "/api/auth", refresh.Path)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
}

func TestLoginRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", map[string]string{"username": testUsername})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, decodeError(t, w).Code)

	w = env.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: testUsername, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidCredentials, resp.Code)
	assert.Nil(t, findCookie(w, "grubtech_auth"))
}

func TestRefreshRotatesCookies(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := env.login(t)

	w := env.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rotated := findCookie(w, "grubtech_refresh")
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)
	assert.NotNil(t, findCookie(w, "grubtech_auth"))

	w = env.do(http.MethodPost, "/api/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshReplayIsRejected(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := env.login(t)

	w := env.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidRefreshToken, decodeError(t, w).Code)

	cleared := findCookie(w, "grubtech_refresh")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeNoRefreshToken, decodeError(t, w).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t)

	w := env.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeNoToken, decodeError(t, w).Code)

	w = env.do(http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: "grubtech_auth", Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidToken, decodeError(t, w).Code)
	cleared := findCookie(w, "grubtech_auth")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	w = env.do(http.MethodGet, "/api/auth/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.AuthUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, testUsername, me.User.Username)
}

func TestBearerTokenIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t)

	req := newRequest(http.MethodGet, "/api/auth/verify")
	req.Header.Set("Authorization", "Bearer "+access.Value)
	w := serve(env.router, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, env.userID, resp.User.ID)
}

func TestExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t)

	env.clock.t = env.clock.t.Add(16 * time.Minute)

	w := env.do(http.MethodGet, "/api/auth/verify", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeTokenExpired, decodeError(t, w).Code)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := env.login(t)

	w := env.do(http.MethodPost, "/api/auth/logout", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code)
	for _, name := range []string{"grubtech_auth", "grubtech_refresh"} {
		c := findCookie(w, name)
		require.NotNil(t, c, name)
		assert.Negative(t, c.MaxAge)
	}

	w = env.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	access, firstRefresh := env.login(t)
	_, secondRefresh := env.login(t)

	w := env.do(http.MethodPost, "/api/auth/logout-all", nil, access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.LogoutAllResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.EqualValues(t, 2, resp.Revoked)

	for _, refresh := range []*http.Cookie{firstRefresh, secondRefresh} {
		w = env.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, CodeInvalidRefreshToken, decodeError(t, w).Code)
	}

	w = env.do(http.MethodPost, "/api/auth/logout-all", nil)
	assert.Equal(t, CodeNoToken, decodeError(t, w).Code)
}

func TestMeForDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.login(t)

	require.NoError(t, env.repo.DeleteUser(context.Background(), env.userID))

	w := env.do(http.MethodGet, "/api/auth/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUserNotFound, decodeError(t, w).Code)
}
