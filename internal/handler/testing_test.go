package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/kv"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/ratelimit"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUsername = "admin"
	testPassword = "correct-horse"
	testIP       = "203.0.113.7"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

type testEnv struct {
	router *gin.Engine
	repo   *db.Memory
	auth   *service.AuthService
	store  *kv.Memory
	clock  *testClock
	userID int64
}

type envOption func(deps *RouterDeps, repo *db.Memory)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{t: time.Now()}
	repo := db.NewMemory()
	authCfg := config.AuthConfig{
		JWTSecret:         "handler-test-secret",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		AccessCookieName:  "grubtech_auth",
		RefreshCookieName: "grubtech_refresh",
		AccessCookiePath:  "/",
		RefreshCookiePath: "/api/auth",
		CookieSecure:      true,
		CookieSameSite:    "none",
	}
	auth, err := service.NewAuthService(repo, authCfg, logging.Discard(),
		service.WithClock(clock.now),
		service.WithBcryptCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), testUsername, string(hash))
	require.NoError(t, err)

	store := kv.NewMemoryWithClock(clock.now)
	deps := RouterDeps{
		Log:            logging.Discard(),
		Auth:           auth,
		Setup:          service.NewSetupService(repo, "setup-secret", logging.Discard()),
		DB:             repo,
		Limiters:       ratelimit.NewPresetLimiters(store, false, ratelimit.WithClock(clock.now)),
		AllowedOrigins: []string{"https://www.grubtech.com"},
	}
	for _, opt := range opts {
		opt(&deps, repo)
	}

	router, err := NewRouter(deps)
	require.NoError(t, err)

	return &testEnv{
		router: router,
		repo:   repo,
		auth:   auth,
		store:  store,
		clock:  clock,
		userID: user.ID,
	}
}

func (e *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = testIP + ":40000"
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) (access, refresh *http.Cookie) {
	t.Helper()

	w := e.do(http.MethodPost, "/api/auth/login", model.LoginRequest{Username: testUsername, Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access = findCookie(w, "grubtech_auth")
	refresh = findCookie(w, "grubtech_refresh")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

type failingStore struct{}

var errStoreDown = errors.New("kv down")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Put(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (failingStore) Delete(context.Context, string) error { return errStoreDown }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func newRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = testIP + ":40000"
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
