package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data/nebby.db", cfg.DBPath)
	assert.Equal(t, 30*24*time.Hour, cfg.EvaporationThreshold())
	assert.Equal(t, time.Duration(0), cfg.EvaporationInterval())
	assert.Equal(t, 30*time.Second, cfg.GeminiTimeout())
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebnav.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = ":9090"
db_path = "/tmp/test.db"

[gemini]
model = "gemini-test"
timeout = "10s"

[evaporation]
threshold_days = 7
interval_minutes = 15
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
	assert.Equal(t, 10*time.Second, cfg.GeminiTimeout())
	assert.Equal(t, 7*24*time.Hour, cfg.EvaporationThreshold())
	assert.Equal(t, 15*time.Minute, cfg.EvaporationInterval())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebnav.toml")
	require.NoError(t, os.WriteFile(path, []byte(`addr = ":9090"`), 0o644))

	t.Setenv("NEBNAV_ADDR", ":7070")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("NEBNAV_EVAPORATION_THRESHOLD_DAYS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.Equal(t, 3*24*time.Hour, cfg.EvaporationThreshold())
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nebnav.toml")
	require.NoError(t, os.WriteFile(path, []byte(`addr = [not toml`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestBadDurationFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Gemini.Timeout = "soon"
	assert.Equal(t, 30*time.Second, cfg.GeminiTimeout())
}
