package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnclock/internal/factory"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "HOST", "PORT", "STORAGE_TYPE", "REDIS_URL", "DATABASE_URL",
		"NATS_URL", "NATS_STREAM", "JWT_SECRET", "SESSION_DURATION", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"), "")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, factory.StorageTypeMemory, cfg.Storage.Type)
	assert.Equal(t, 8080, cfg.Server.Port)

	fc := cfg.Factory(nil)
	assert.Nil(t, fc.RedisConfig)
	assert.Nil(t, fc.PostgresConfig)
	assert.Nil(t, fc.JetStreamConfig)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "tclock.yaml", `
log_level: debug
server:
  port: 9000
  read_timeout: 5s
storage:
  type: redis
  redis_url: redis://cache:6379
  room_ttl: 2h
nats:
  url: nats://bus:4222
auth:
  session_duration: 1h
cors:
  allowed_origins: [https://clock.example]
`)

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"), path)
	require.NoError(t, err)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, []string{"https://clock.example"}, cfg.CORS.AllowedOrigins)

	httpCfg := cfg.HTTP()
	assert.Equal(t, 9000, httpCfg.Port)
	assert.Equal(t, 5*time.Second, httpCfg.ReadTimeout)

	fc := cfg.Factory(nil)
	assert.Equal(t, factory.StorageTypeRedis, fc.StorageType)
	require.NotNil(t, fc.RedisConfig)
	assert.Equal(t, "redis://cache:6379", fc.RedisConfig.URL)
	assert.Equal(t, 2*time.Hour, fc.RedisConfig.RoomTTL)
	require.NotNil(t, fc.JetStreamConfig)
	assert.Equal(t, "nats://bus:4222", fc.JetStreamConfig.URL)
	assert.Equal(t, time.Hour, fc.AuthConfig.SessionDuration)
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/tclock")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	path := writeFile(t, "tclock.yaml", "server:\n  port: 9000\n")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"), path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)

	fc := cfg.Factory(nil)
	require.NotNil(t, fc.PostgresConfig)
	assert.Equal(t, "postgres://db/tclock", fc.PostgresConfig.URL)
}

func TestDotEnvFillsUnsetVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "from-env")
	envFile := writeFile(t, ".env", "JWT_SECRET=from-file\nLOG_LEVEL=warn\n")

	// os.Unsetenv so godotenv sees LOG_LEVEL as missing; t.Setenv restores it
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	cfg, err := load(envFile, "")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "redis without url", env: map[string]string{"STORAGE_TYPE": "redis"}},
		{name: "postgres without url", env: map[string]string{"STORAGE_TYPE": "postgres"}},
		{name: "unknown storage", env: map[string]string{"STORAGE_TYPE": "sqlite"}},
		{name: "bad port", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "unknown yaml field", yaml: "storage:\n  kind: redis\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "tclock.yaml", tt.yaml)
			}

			_, err := load(missing, path)
			assert.Error(t, err)
		})
	}
}
