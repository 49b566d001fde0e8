package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrettyHandlerWritesMessageAndAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	h := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug}}.NewPrettyHandler(&buf)
	log := slog.New(h).With(slog.String("op", "test"))

	log.Warn("limiter store unavailable", Err(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "WARN:")
	assert.Contains(t, out, "limiter store unavailable")
	assert.Contains(t, out, `"op": "test"`)
	assert.Contains(t, out, `"error": "boom"`)
}

func TestNewByEnvironment(t *testing.T) {
	assert.IsType(t, &PrettyHandler{}, New("development").Handler())
	assert.IsType(t, &slog.JSONHandler{}, New("production").Handler())
	assert.NotNil(t, New("test"))
}
