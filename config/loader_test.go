package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "kpitrack.db", cfg.DBPath)
	assert.Equal(t, "per_week", cfg.DefaultRepeatPolicy)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("KPITRACK_ADDR", ":9090")
	t.Setenv("KPITRACK_DB_PATH", ":memory:")
	t.Setenv("KPITRACK_DEFAULT_REPEAT_POLICY", "per_day")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "per_day", cfg.DefaultRepeatPolicy)
	assert.Equal(t, "info", cfg.LogLevel, "untouched keys keep their defaults")
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\nlog_level: debug\n"), 0o644))
	t.Setenv("KPITRACK_CONFIG", path)
	t.Setenv("KPITRACK_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr, "env wins over file")
	assert.Equal(t, "debug", cfg.LogLevel, "file wins over defaults")
}

func TestLoad_RejectsUnknownRepeatPolicy(t *testing.T) {
	t.Setenv("KPITRACK_DEFAULT_REPEAT_POLICY", "per_fortnight")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_repeat_policy")
}

func TestLoad_RejectsEmptyAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \"\"\n"), 0o644))
	t.Setenv("KPITRACK_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestOrigins_SplitsAndTrims(t *testing.T) {
	cfg := &Config{CORSOrigins: "http://localhost:5173, http://localhost:8080 ,,"}
	assert.Equal(t,
		[]string{"http://localhost:5173", "http://localhost:8080"},
		cfg.Origins())

	empty := &Config{CORSOrigins: ""}
	assert.Nil(t, empty.Origins())
}
