package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerCreatesLogDirectories(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(
		WithLevel("debug"),
		WithEncoding("console"),
		WithOutputPaths([]string{filepath.Join(dir, "app", "app.log")}),
		WithErrorPaths([]string{filepath.Join(dir, "err", "error.log")}),
	)
	require.NoError(t, err)
	log.Info("hello", String("k", "v"))
	assert.DirExists(t, filepath.Join(dir, "app"))
	assert.DirExists(t, filepath.Join(dir, "err"))
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths(nil))
	assert.Error(t, err)
}

func TestTestLoggerChildrenShareEntries(t *testing.T) {
	log := NewTestLogger()
	child := log.Named("engine").With(String("document_id", "d1"))
	child.Warn("slow page")
	log.Info("root")

	entries := log.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "engine", entries[0].Logger)
	assert.Len(t, entries[0].Fields, 1)
	assert.True(t, log.HasMessage("WARN", "slow page"))

	log.Clear()
	assert.Empty(t, log.GetEntries())
}

func TestContextLoggerAddsRequestID(t *testing.T) {
	base := NewTestLogger()
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))

	NewContextLogger(base).FromContext(WithDocumentID(ctx, "d1")).Info("hi")
	entries := base.GetEntries()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Fields, 2)
}
