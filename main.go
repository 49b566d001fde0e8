package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/handler"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/kv"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/ratelimit"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
	"github.com/gin-gonic/gin"
)

// repository is what the services and health checks need from a storage backend.
type repository interface {
	service.AuthRepository
	CountUsers(ctx context.Context) (int64, error)
	CreateFirstUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	Ping(ctx context.Context) error
	Close() error
}

// @title Grubtech API
// @version 1.0
// @description Authentication and rate limiting for the Grubtech website backend.
// @BasePath /
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name grubtech_auth
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logging.New(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("grubtech api stopped", logging.Err(err))
		os.Exit(1)
	}
}

// run owns every resource it opens, so returning from it always releases
// them before main decides on the exit code.
func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting grubtech api", slog.String("env", cfg.Env), slog.String("db", cfg.Database.Driver), slog.String("kv", cfg.KV.Driver))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, pg, err := openRepository(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	store, closeStore, err := openKV(ctx, cfg, pg)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer closeStore()

	authService, err := service.NewAuthService(repo, cfg.Auth, log)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}
	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin user: %w", err)
		}
	}

	var limiters map[string]*ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiters = ratelimit.NewPresetLimiters(store, cfg.IsProduction())
	} else {
		log.Warn("rate limiting disabled")
	}

	router, err := handler.NewRouter(handler.RouterDeps{
		Log:             log,
		Auth:            authService,
		Setup:           service.NewSetupService(repo, cfg.Auth.SetupToken, log),
		DB:              repo,
		Limiters:        limiters,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		Production:      cfg.IsProduction(),
		TrustedProxies:  cfg.HTTP.TrustedProxies,
		TrustCloudflare: cfg.HTTP.TrustCloudflare,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	var janitor sync.WaitGroup
	defer janitor.Wait()
	if pg != nil && cfg.KV.Driver == "postgres" {
		janitor.Add(1)
		go func() {
			defer janitor.Done()
			purgeExpiredKV(ctx, pg.KV(), cfg.KV.PurgeInterval, log)
		}()
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openRepository returns the configured backend. The *db.Postgres result is
// non-nil only for the postgres driver so callers can reuse its pool.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository, *db.Postgres, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		sqlite, err := db.NewSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := db.MigrateSQLite(sqlite.DB(), false); err != nil {
				_ = sqlite.Close()
				return nil, nil, err
			}
			log.Info("sqlite migrations applied", slog.String("path", cfg.Database.SQLitePath))
		}
		return sqlite, nil, nil

	case "memory":
		log.Warn("using in-memory repository, data is lost on restart")
		return db.NewMemory(), nil, nil

	default:
		dsn, err := cfg.Database.PostgresURL()
		if err != nil {
			return nil, nil, err
		}
		pg, err := db.NewPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := db.MigratePostgres(pg.Pool, false); err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
			log.Info("postgres migrations applied")
		}
		return pg, pg, nil
	}
}

func openKV(ctx context.Context, cfg *config.Config, pg *db.Postgres) (kv.Store, func(), error) {
	switch cfg.KV.Driver {
	case "mongo":
		m, err := kv.NewMongo(ctx, cfg.KV.MongoURI, cfg.KV.MongoDatabase, cfg.KV.MongoCollection)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(closeCtx)
		}, nil

	case "postgres":
		return pg.KV(), func() {}, nil

	default:
		return kv.NewMemory(), func() {}, nil
	}
}

func purgeExpiredKV(ctx context.Context, store *db.KVStore, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.Warn("kv purge failed", logging.Err(err))
				continue
			}
			if n > 0 {
				log.Debug("kv purge", slog.Int64("removed", n))
			}
		}
	}
}
