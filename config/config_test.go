package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	def := Defaults()
	assert.Equal(t, "8080", def.Port)
	assert.Equal(t, "dev", def.Env)
	assert.Equal(t, BackendDynamo, def.StoreBackend)
	assert.Equal(t, 24*time.Hour, def.RoomTTL())
	assert.Equal(t, 30*time.Second, def.IndexProbeTTL())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ROOM_TTL_HOURS", "2")
	t.Setenv("INDEX_PROBE_TTL_SECONDS", "5")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.RoomTTL())
	assert.Equal(t, 5*time.Second, cfg.IndexProbeTTL())
	assert.Equal(t, 2.5, cfg.RateLimitPerSecond)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	// untouched fields keep their defaults
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoadRejectsDevSecretOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", DevJWTSecret)
	_, err := Load()
	assert.ErrorIs(t, err, ErrDefaultJWTSecret)

	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorIs(t, err, ErrDefaultJWTSecret)

	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("JWT_SECRET", DevJWTSecret)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
}
