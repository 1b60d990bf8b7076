// Package config loads the settings shared by the strata commands.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the commands look for a config file.
const DefaultPath = "strata.yaml"

// Checkpoint drivers.
const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config holds the workspace, persistence and logging settings.
type Config struct {
	Name           string         `mapstructure:"name"`
	Capacity       int            `mapstructure:"capacity"`
	CoalesceWindow time.Duration  `mapstructure:"coalesce_window"`
	LogLevel       string         `mapstructure:"log_level"`
	InitialState   map[string]any `mapstructure:"initial_state"`
	// Schema declares slice types, e.g. {zoom: float, layers: "[string]"}.
	Schema map[string]string `mapstructure:"schema"`

	Checkpoints Checkpoints `mapstructure:"checkpoints"`

	// EncryptionKey is a hex encoded AES-256 key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys are older keys still accepted for decryption.
	FallbackKeys []string `mapstructure:"fallback_keys"`
	// Redact lists regular expressions of keys masked before checkpoints are saved.
	Redact []string `mapstructure:"redact"`

	HTTP HTTP `mapstructure:"http"`
}

// Checkpoints selects and configures the checkpoint store.
type Checkpoints struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	Redis  Redis  `mapstructure:"redis"`
}

// Redis configures the redis checkpoint driver.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Lock     bool          `mapstructure:"lock"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Capacity:       100,
		CoalesceWindow: 350 * time.Millisecond,
		LogLevel:       "info",
		Checkpoints: Checkpoints{
			Driver: DriverFile,
			Dir:    filepath.Join(".strata", "checkpoints"),
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "strata:",
			},
		},
		HTTP: HTTP{Addr: ":8080"},
	}
}

// Load reads a YAML or JSON file over the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if err := Decode(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode copies a loosely typed map onto cfg, leaving absent keys untouched.
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return domain.NewValidationError("capacity", "must be positive", c.Capacity)
	}
	if c.CoalesceWindow < 0 {
		return domain.NewValidationError("coalesce_window", "must not be negative", c.CoalesceWindow)
	}
	switch c.Checkpoints.Driver {
	case DriverFile, DriverMemory, DriverRedis:
	default:
		return domain.NewValidationError("checkpoints.driver", "must be file, memory or redis", c.Checkpoints.Driver)
	}
	if c.Checkpoints.Redis.TTL < 0 {
		return domain.NewValidationError("checkpoints.redis.ttl", "must not be negative", c.Checkpoints.Redis.TTL)
	}
	if _, err := c.SliceSchema(); err != nil {
		return err
	}
	for _, p := range c.Redact {
		if _, err := regexp.Compile(p); err != nil {
			return domain.NewValidationError("redact", err.Error(), p)
		}
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	return nil
}

// SliceSchema parses the declared slice types. It is nil when none are declared.
func (c Config) SliceSchema() (schema.Schema, error) {
	if len(c.Schema) == 0 {
		return nil, nil
	}
	return schema.ParseTypeMap(c.Schema)
}

// Keys decodes the encryption keys. The active key is nil when encryption is disabled.
func (c Config) Keys() (active []byte, fallbacks [][]byte, err error) {
	if c.EncryptionKey == "" {
		if len(c.FallbackKeys) > 0 {
			return nil, nil, domain.NewValidationError("fallback_keys", "require encryption_key", nil)
		}
		return nil, nil, nil
	}
	active, err = decodeKey("encryption_key", c.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range c.FallbackKeys {
		key, err := decodeKey("fallback_keys", k)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

func decodeKey(field, s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be hex encoded", nil)
	}
	if len(key) != 32 {
		return nil, domain.NewValidationError(field, fmt.Sprintf("must be 32 bytes, got %d", len(key)), nil)
	}
	return key, nil
}
