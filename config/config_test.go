package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Storage.DataDir, cfg.Storage.DataDir)
	assert.Equal(t, DispatcherLocal, cfg.Processing.Dispatcher)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  dataDir: /srv/docs
processing:
  startDelay: 250ms
  poolSize: 2
gemini:
  defaultModel: from-file
`), 0644))

	t.Setenv("GEMINI_MODEL", "from-env")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs", cfg.Storage.DataDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Processing.StartDelay)
	assert.Equal(t, 2, cfg.Processing.PoolSize)
	assert.Equal(t, "from-env", cfg.Gemini.DefaultModel)
	assert.Equal(t, "k", cfg.Gemini.APIKey)
	assert.Equal(t, 0, cfg.Redis.DB)
	// untouched sections keep defaults
	assert.Equal(t, 3, cfg.Processing.MetadataAttempts)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  dispatcher: carrier-pigeon\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "dispatcher")

	require.NoError(t, os.WriteFile(path, []byte("storage: [oops"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestTextractConfigured(t *testing.T) {
	assert.False(t, TextractConfig{}.Configured())
	assert.True(t, TextractConfig{AccessKey: "a", SecretKey: "b"}.Configured())
}
