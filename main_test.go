package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Env: config.EnvTest,
		HTTP: config.HTTPConfig{
			Addr:         "127.0.0.1:0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			AutoMigrate: true,
			SQLitePath:  filepath.Join(t.TempDir(), "data", "grubtech.db"),
		},
		KV: config.KVConfig{Driver: "memory"},
		Auth: config.AuthConfig{
			JWTSecret:         "main-test-secret",
			AccessTTL:         15 * time.Minute,
			RefreshTTL:        7 * 24 * time.Hour,
			AccessCookieName:  "grubtech_auth",
			RefreshCookieName: "grubtech_refresh",
			CookieSecure:      true,
			CookieSameSite:    "none",
		},
		RateLimit: config.RateLimitConfig{Enabled: true},
	}
}

func TestRunReturnsStartupErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
		wantMsg string
	}{
		{
			name: "bootstrap admin rejected",
			mutate: func(cfg *config.Config) {
				cfg.Auth.AdminUsername = "x"
				cfg.Auth.AdminPassword = "short"
			},
			wantErr: service.ErrInvalidInput,
			wantMsg: "ensure admin user",
		},
		{
			name: "bad trusted proxy",
			mutate: func(cfg *config.Config) {
				cfg.HTTP.TrustedProxies = []string{"not-a-cidr"}
			},
			wantMsg: "build router",
		},
		{
			name: "auth misconfigured",
			mutate: func(cfg *config.Config) {
				cfg.Auth.JWTSecret = ""
			},
			wantErr: service.ErrMisconfigured,
			wantMsg: "init auth service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := run(cfg, logging.Discard())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
