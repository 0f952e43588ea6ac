package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := NewLogger(
		WithLevel("debug"),
		WithEncoding("json"),
		WithOutputPaths([]string{path}),
		WithErrorPaths([]string{"stderr"}),
		WithRotation(1, 1, 1, false),
	)
	require.NoError(t, err)

	l.Named("epub").Debug("Cover found", String("tier", "meta-cover"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Cover found"`)
	assert.Contains(t, string(data), `"logger":"epub"`)
	assert.Contains(t, string(data), `"tier":"meta-cover"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths([]string{"stderr"}))
	assert.Error(t, err)
}

func TestTestLoggerSharesEntriesAcrossChildren(t *testing.T) {
	root := NewTestLogger()
	child := root.Named("pdf").With(String("file", "a.pdf"))

	child.Warn("Failed to read pdf")
	root.Info("started")

	entries := root.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "pdf", entries[0].Logger)
	assert.Len(t, entries[0].Fields, 1)
	assert.True(t, root.HasMessage("WARN", "Failed to read pdf"))
	assert.NoError(t, child.Sync())

	root.Clear()
	assert.Empty(t, root.GetEntries())
}

func TestContextLoggerAddsIDs(t *testing.T) {
	root := NewTestLogger()
	cl := NewContextLogger(root)

	ctx := WithBookID(WithRequestID(context.Background(), "req-1"), "book-9")
	assert.Equal(t, "req-1", RequestID(ctx))

	cl.FromContext(ctx).Info("read book")
	cl.FromContext(context.Background()).Info("no ids")

	entries := root.GetEntries()
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Fields, 2)
	assert.Empty(t, entries[1].Fields)
}
