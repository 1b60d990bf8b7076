package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "strata.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 100, cfg.Capacity)
	assert.Equal(t, 350*time.Millisecond, cfg.CoalesceWindow)
	assert.Equal(t, config.DriverFile, cfg.Checkpoints.Driver)
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "strata.yaml", `
name: drawing
capacity: 20
coalesce_window: 1s
log_level: debug
initial_state:
  canvas:
    color: white
checkpoints:
  driver: redis
  redis:
    addr: cache:6379
    ttl: 24h
    lock: true
redact: ["password", "token"]
schema:
  canvas: map
  layers: "[string]"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "drawing", cfg.Name)
	assert.Equal(t, 20, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.CoalesceWindow)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, map[string]any{"color": "white"}, cfg.InitialState["canvas"])
	assert.Equal(t, config.DriverRedis, cfg.Checkpoints.Driver)
	assert.Equal(t, "cache:6379", cfg.Checkpoints.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Checkpoints.Redis.TTL)
	assert.True(t, cfg.Checkpoints.Redis.Lock)
	assert.Equal(t, "strata:", cfg.Checkpoints.Redis.Prefix, "unset keys keep their default")
	assert.Equal(t, []string{"password", "token"}, cfg.Redact)

	slices, err := cfg.SliceSchema()
	require.NoError(t, err)
	assert.Equal(t, []string{"canvas", "layers"}, slices.Keys())
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "strata.json", `{"capacity": 5, "checkpoints": {"driver": "memory"}}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Capacity)
	assert.Equal(t, config.DriverMemory, cfg.Checkpoints.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(write(t, "bad.yaml", "capacity: [1"))
	assert.ErrorContains(t, err, "failed to parse")

	_, err = config.Load(write(t, "unknown.yaml", "colour: red"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = config.Load(write(t, "zero.yaml", "capacity: 0"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidate(t *testing.T) {
	key := strings.Repeat("ab", 32)
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"negative window", func(c *config.Config) { c.CoalesceWindow = -time.Second }, "coalesce_window"},
		{"unknown driver", func(c *config.Config) { c.Checkpoints.Driver = "s3" }, "checkpoints.driver"},
		{"negative ttl", func(c *config.Config) { c.Checkpoints.Redis.TTL = -1 }, "checkpoints.redis.ttl"},
		{"bad schema type", func(c *config.Config) { c.Schema = map[string]string{"zoom": "decimal"} }, "schema.zoom"},
		{"bad redact pattern", func(c *config.Config) { c.Redact = []string{"(token"} }, "redact"},
		{"bad key", func(c *config.Config) { c.EncryptionKey = "zz" }, "encryption_key"},
		{"short key", func(c *config.Config) { c.EncryptionKey = "abcd" }, "encryption_key"},
		{"orphan fallback", func(c *config.Config) { c.FallbackKeys = []string{key} }, "fallback_keys"},
		{"bad fallback", func(c *config.Config) {
			c.EncryptionKey = key
			c.FallbackKeys = []string{"00"}
		}, "fallback_keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestKeys(t *testing.T) {
	cfg := config.Default()
	active, fallbacks, err := cfg.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallbacks)

	cfg.EncryptionKey = strings.Repeat("01", 32)
	cfg.FallbackKeys = []string{strings.Repeat("02", 32)}
	active, fallbacks, err = cfg.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, byte(2), fallbacks[0][0])
}
