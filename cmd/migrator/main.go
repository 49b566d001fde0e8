// Command migrator applies or reverts the schema migrations for the
// configured database and can seed the first admin user.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/service"
)

func main() {
	var (
		configPath    = flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
		driver        = flag.String("driver", "", "database driver override: postgres or sqlite")
		dsn           = flag.String("dsn", "", "postgres URL or sqlite file path override")
		down          = flag.Bool("down", false, "revert all migrations instead of applying them")
		adminUsername = flag.String("admin-username", "", "create this admin user after migrating")
		adminPassword = flag.String("admin-password", "", "password for -admin-username")
	)
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	log := logging.New(cfg.Env).With(slog.String("cmd", "migrator"))

	if *driver != "" {
		cfg.Database.Driver = *driver
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, *dsn, *down, *adminUsername, *adminPassword, log); err != nil {
		log.Error("migration failed", logging.Err(err))
		os.Exit(1)
	}
	log.Info("done", slog.String("driver", cfg.Database.Driver), slog.Bool("down", *down))
}

func run(ctx context.Context, cfg *config.Config, dsn string, down bool, adminUsername, adminPassword string, log *slog.Logger) error {
	switch cfg.Database.Driver {
	case "sqlite":
		path := cfg.Database.SQLitePath
		if dsn != "" {
			path = dsn
		}
		sqlite, err := db.NewSQLite(path)
		if err != nil {
			return err
		}
		defer sqlite.Close()

		if err := db.MigrateSQLite(sqlite.DB(), down); err != nil {
			return err
		}
		return seedAdmin(ctx, sqlite, cfg, down, adminUsername, adminPassword, log)

	case "postgres":
		if dsn == "" {
			var err error
			if dsn, err = cfg.Database.PostgresURL(); err != nil {
				return err
			}
		}
		pg, err := db.NewPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := db.MigratePostgres(pg.Pool, down); err != nil {
			return err
		}
		return seedAdmin(ctx, pg, cfg, down, adminUsername, adminPassword, log)

	default:
		log.Warn("nothing to migrate", slog.String("driver", cfg.Database.Driver))
		return nil
	}
}

func seedAdmin(ctx context.Context, repo service.AuthRepository, cfg *config.Config, down bool, username, password string, log *slog.Logger) error {
	if down || username == "" {
		return nil
	}

	auth, err := service.NewAuthService(repo, cfg.Auth, log)
	if err != nil {
		return err
	}
	return auth.EnsureAdmin(ctx, username, password)
}
