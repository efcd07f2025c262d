package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "darkroom.db", cfg.DBPath)
	assert.Equal(t, 100, cfg.Platform.PageLimit)
	assert.Equal(t, 10*time.Second, cfg.Platform.Timeout.Std())
	assert.Equal(t, 7, cfg.Thresholds.NewMaxAgeDays)
	assert.Equal(t, time.Hour, cfg.CollectEvery.Std())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darkroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/darkroom/darkroom.db
platform:
  base_url: https://board.example.com/api/v1
  page_limit: 50
thresholds:
  new_max_age_days: 3
  theory_min_comments: 20
  theory_min_age_days: 30
collect_every: 15m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/darkroom/darkroom.db", cfg.DBPath)
	assert.Equal(t, "https://board.example.com/api/v1", cfg.Platform.BaseURL)
	assert.Equal(t, 50, cfg.Platform.PageLimit)
	assert.Equal(t, 20, cfg.Thresholds.TheoryMinComments)
	assert.Equal(t, 15*time.Minute, cfg.CollectEvery.Std())
	assert.Equal(t, uint64(3), cfg.Platform.MaxRetries, "untouched default survives")
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DARKROOM_API_KEY", "env-platform-key")
	t.Setenv("OPENAI_API_KEY", "env-openai-key")

	path := filepath.Join(t.TempDir(), "darkroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: darkroom.db
platform:
  api_key: file-key
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-platform-key", cfg.Platform.APIKey)
	assert.Equal(t, "env-openai-key", cfg.OpenAI.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darkroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: ""
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
