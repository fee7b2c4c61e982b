package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tripvoice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Analyze)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Plan)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.TTS)
	assert.True(t, cfg.Speech.Enabled)
	assert.InDelta(t, 1.1, cfg.Speech.Rate, 0.0001)
	assert.Equal(t, config.CacheMemory, cfg.Cache.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnv_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripvoice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://planner.internal:9000
timeouts:
  plan: 3m
speech:
  enabled: false
cache:
  backend: redis
`), 0644))

	cfg, err := config.LoadWithEnv(path, []string{
		"TRIPVOICE_API_URL=http://override:8000",
		"TRIPVOICE_TIMEOUTS_ANALYZE=5s",
		"TRIPVOICE_CACHE_REDIS_URL=redis://cache:6379/1",
		"TRIPVOICE_SPEECH_RATE=1.3",
		"TRIPVOICE_UNKNOWN=ignored",
		"HOME=/root",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://override:8000", cfg.APIURL, "env wins over the file")
	assert.Equal(t, 3*time.Minute, cfg.Timeouts.Plan)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Analyze)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Transcribe, "unset keys keep defaults")
	assert.False(t, cfg.Speech.Enabled)
	assert.InDelta(t, 1.3, cfg.Speech.Rate, 0.0001)
	assert.Equal(t, config.CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
}

func TestLoadWithEnv_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing file", func(t *testing.T) {
		_, err := config.LoadWithEnv(filepath.Join(dir, "missing.yaml"), nil)
		assert.Error(t, err)
	})

	t.Run("Unknown key", func(t *testing.T) {
		path := filepath.Join(dir, "unknown.yaml")
		require.NoError(t, os.WriteFile(path, []byte("colour: blue\n"), 0644))
		_, err := config.LoadWithEnv(path, nil)
		assert.ErrorContains(t, err, "colour")
	})

	t.Run("Section replaced by scalar", func(t *testing.T) {
		path := filepath.Join(dir, "scalar.yaml")
		require.NoError(t, os.WriteFile(path, []byte("timeouts: 5s\n"), 0644))
		_, err := config.LoadWithEnv(path, nil)
		assert.ErrorContains(t, err, "timeouts")
	})

	t.Run("Invalid values", func(t *testing.T) {
		_, err := config.LoadWithEnv("", []string{
			"TRIPVOICE_API_URL=localhost",
			"TRIPVOICE_CACHE_BACKEND=memcached",
		})
		assert.ErrorContains(t, err, "api_url")
		assert.ErrorContains(t, err, "memcached")
	})

	t.Run("Bad duration", func(t *testing.T) {
		_, err := config.LoadWithEnv("", []string{"TRIPVOICE_TIMEOUTS_PLAN=soon"})
		assert.Error(t, err)
	})

	t.Run("Short encryption key", func(t *testing.T) {
		_, err := config.LoadWithEnv("", []string{"TRIPVOICE_CACHE_ENCRYPTION_KEY=c2hvcnQ="})
		assert.ErrorContains(t, err, "32 byte key")
	})
}

func TestCache_Keys(t *testing.T) {
	active := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	previous := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))

	keys, err := config.Cache{EncryptionKey: active, PreviousKeys: []string{previous}}.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, byte(1), keys[0][0])
	assert.Equal(t, byte(2), keys[1][0])
}
