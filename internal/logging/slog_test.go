package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "salt lookup", "path", "a")
	log.Info(ctx, "config decrypted", "source", "vault")
	log.Warn(ctx, "payload recovered", "blob", "users")
	log.Error(ctx, "integrity failure", "attempts", 3)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=\"salt lookup\"", "path=a",
		"level=INFO", "source=vault",
		"level=WARN", "blob=users",
		"level=ERROR", "attempts=3",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "users").Info(context.Background(), "loaded", "count", 2)

	out := buf.String()
	assert.True(t, strings.Contains(out, "component=users"), out)
	assert.True(t, strings.Contains(out, "count=2"), out)
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.With("a", 1).Error(context.TODO(), "ignored")
	})
}
