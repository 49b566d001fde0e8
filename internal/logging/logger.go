// Package logging builds the process-wide slog.Logger and a few attribute
// helpers shared by every layer.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
)

// New returns a logger suited to env: a colourised console logger for local
// development, JSON for production and a discarding logger for tests.
func New(env string) *slog.Logger {
	switch env {
	case config.EnvProduction:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case config.EnvTest:
		return Discard()
	default:
		opts := PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
		}
		return slog.New(opts.NewPrettyHandler(os.Stdout))
	}
}

func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
