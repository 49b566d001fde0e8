package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// start from an empty install
	require.NoError(t, env.repo.DeleteUser(ctx, env.userID))

	w := env.do(http.MethodGet, "/api/setup/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status model.SetupStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.NeedsSetup)
	assert.True(t, status.Enabled)

	w = env.do(http.MethodPost, "/api/setup/admin", model.SetupAdminRequest{SetupToken: "setup-secret", Username: "ow", Password: "long-enough"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, decodeError(t, w).Code)

	w = env.do(http.MethodPost, "/api/setup/admin", model.SetupAdminRequest{SetupToken: "nope", Username: "owner", Password: "long-enough"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidSetupToken, decodeError(t, w).Code)

	w = env.do(http.MethodPost, "/api/setup/admin", model.SetupAdminRequest{SetupToken: "setup-secret", Username: "owner", Password: "long-enough"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.AuthUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "owner", created.User.Username)

	w = env.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: "owner", Password: "long-enough"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/setup/admin", model.SetupAdminRequest{SetupToken: "setup-secret", Username: "second", Password: "long-enough"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeSetupComplete, decodeError(t, w).Code)
}

func TestSetupTokenFromHeader(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.repo.DeleteUser(context.Background(), env.userID))

	body := `{"username":"owner","password":"long-enough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/setup/admin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Setup-Token", "setup-secret")
	w := serve(env.router, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestSetupDisabledWithoutToken(t *testing.T) {
	env := newTestEnv(t, func(deps *RouterDeps, repo *db.Memory) {
		deps.Setup = service.NewSetupService(repo, "", logging.Discard())
	})

	w := env.do(http.MethodPost, "/api/setup/admin", model.SetupAdminRequest{SetupToken: "anything", Username: "owner", Password: "long-enough"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeSetupDisabled, decodeError(t, w).Code)
}
