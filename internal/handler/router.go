package handler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/ratelimit"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Log            *slog.Logger
	Auth           *service.AuthService
	Setup          *service.SetupService
	DB             pinger
	Limiters       map[string]*ratelimit.Limiter
	AllowedOrigins []string
	Production     bool

	TrustedProxies  []string
	TrustCloudflare bool
}

// NewRouter wires the global middleware chain and every route. A nil entry in
// Limiters disables that limiter.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	if err := ConfigureClientIP(r, deps.TrustedProxies, deps.TrustCloudflare); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Log))
	r.Use(SecureHeadersMiddleware(deps.Production))
	r.Use(CORSMiddleware(deps.AllowedOrigins, true))

	health := NewHealthHandler(deps.DB, deps.Log)
	r.GET("/", Root)
	r.GET("/ping", Ping)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/openapi.json", OpenAPIDoc)

	limit := func(name string) gin.HandlerFunc {
		if l := deps.Limiters[name]; l != nil {
			return RateLimitMiddleware(l, deps.Log)
		}
		return func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api", limit(ratelimit.API))

	authHandler := NewAuthHandler(deps.Auth, deps.Log)
	requireAuth := AuthMiddleware(deps.Auth)

	auth := api.Group("/auth")
	auth.POST("/login", limit(ratelimit.Login), authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/logout-all", requireAuth, authHandler.LogoutAll)
	auth.GET("/verify", requireAuth, authHandler.Verify)
	auth.GET("/me", requireAuth, authHandler.Me)

	if deps.Setup != nil {
		setupHandler := NewSetupHandler(deps.Setup, deps.Log)
		setup := api.Group("/setup")
		setup.GET("/status", setupHandler.Status)
		setup.POST("/admin", limit(ratelimit.Setup), setupHandler.CreateAdmin)
	}

	return r, nil
}

// ConfigureClientIP makes c.ClientIP() return the TCP peer unless the peer is
// one of trustedProxies, in which case X-Forwarded-For is used. With
// trustCloudflare, CF-Connecting-IP wins over both.
func ConfigureClientIP(r *gin.Engine, trustedProxies []string, trustCloudflare bool) error {
	var proxies []string
	for _, p := range trustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	r.ForwardedByClientIP = len(proxies) > 0
	r.RemoteIPHeaders = []string{"X-Forwarded-For"}
	if trustCloudflare {
		r.TrustedPlatform = gin.PlatformCloudflare
	}
	return nil
}
