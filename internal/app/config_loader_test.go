package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 1, config.Batch.Jobs)
	assert.Equal(t, 1.0, config.Batch.RateLimit)
	assert.Equal(t, 60*time.Second, config.Fetch.Timeout)
	assert.False(t, config.Fetch.BrowserFallback)
	assert.True(t, config.Browser.Headless)
	assert.Equal(t, "stderr", config.Logging.OutputPath)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
fetch:
  output_dir: /tmp/out
  timeout: 90s
batch:
  jobs: 4
  rate_limit: 2.5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", config.Fetch.OutputDir)
	assert.Equal(t, 90*time.Second, config.Fetch.Timeout)
	assert.Equal(t, 4, config.Batch.Jobs)
	assert.Equal(t, 2.5, config.Batch.RateLimit)
	assert.Equal(t, "debug", config.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  jobs: 0\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "pics"), expandPath("~/pics"))
	assert.Equal(t, filepath.Join(home, ".sharefetch/manifest.db"), expandPath("$HOME/.sharefetch/manifest.db"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
}
