package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReaderConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadReaderConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, 150.0, cfg.Cover.DPI)
	assert.Equal(t, int64(200<<20), cfg.MaxUploadBytes())
}

func TestLoadReaderConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  maxUploadMB: 10
storage:
  backend: local
  localRoot: /srv/books
cover:
  dpi: 96
`), 0o644))

	t.Setenv("REDIS_DB", "3")
	t.Setenv("READER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("COVER_THUMB_WIDTH", "not-a-number")

	cfg, err := LoadReaderConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "/srv/books", cfg.Storage.LocalRoot)
	assert.Equal(t, 96.0, cfg.Cover.DPI)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 200, cfg.Cover.ThumbWidth)
	// Unset sections keep their defaults.
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoadReaderConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := LoadReaderConfig(path)
	assert.Error(t, err)
}
