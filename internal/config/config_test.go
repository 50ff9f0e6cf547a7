package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, int64(1000), cfg.PlanCacheSize)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv(KeyWorkerConcurrency, "8")
	t.Setenv(KeyPollInterval, "250ms")
	t.Setenv(KeyLogFormat, "text")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT: \"9090\"\nPLAN_CACHE_SIZE: 50\n"), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, int64(50), cfg.PlanCacheSize)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(KeyWorkerConcurrency, "0")

	_, err := LoadFrom(viper.New())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
