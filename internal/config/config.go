// Package config loads the assistant settings from an optional YAML file and
// TRIPVOICE_* environment variables, in that order of precedence (env wins).
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRIPVOICE_API_URL or
// TRIPVOICE_TIMEOUTS_PLAN.
const EnvPrefix = "TRIPVOICE_"

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

// Config is the complete assistant configuration.
type Config struct {
	APIURL      string `mapstructure:"api_url" yaml:"api_url"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
	DevicesFile string `mapstructure:"devices_file" yaml:"devices_file"`

	Timeouts Timeouts `mapstructure:"timeouts" yaml:"timeouts"`
	Speech   Speech   `mapstructure:"speech" yaml:"speech"`
	Cache    Cache    `mapstructure:"cache" yaml:"cache"`
	Server   Server   `mapstructure:"server" yaml:"server"`
	Export   Export   `mapstructure:"export" yaml:"export"`
}

// Timeouts bounds each external call.
type Timeouts struct {
	Analyze    time.Duration `mapstructure:"analyze" yaml:"analyze"`
	Explain    time.Duration `mapstructure:"explain" yaml:"explain"`
	Plan       time.Duration `mapstructure:"plan" yaml:"plan"`
	Transcribe time.Duration `mapstructure:"transcribe" yaml:"transcribe"`
	TTS        time.Duration `mapstructure:"tts" yaml:"tts"`
	Export     time.Duration `mapstructure:"export" yaml:"export"`
}

// Speech configures spoken replies.
type Speech struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	Rate            float64 `mapstructure:"rate" yaml:"rate"`
	Pitch           float64 `mapstructure:"pitch" yaml:"pitch"`
	PreferredVendor string  `mapstructure:"preferred_vendor" yaml:"preferred_vendor"`
	// Local enables the on-device fallback voice.
	Local bool `mapstructure:"local" yaml:"local"`
}

// Cache configures where synthesized audio is kept.
type Cache struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// EncryptionKey is a base64 AES-256 key. When set, cached audio is sealed.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
	// PreviousKeys still decrypt entries written before a key rotation.
	PreviousKeys []string `mapstructure:"previous_keys" yaml:"previous_keys"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Export configures where exported documents go.
type Export struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Unique bool   `mapstructure:"unique" yaml:"unique"`
}

// defaults is the base layer. Every settable key must appear here so that
// environment variables can be matched against it.
func defaults() map[string]any {
	return map[string]any{
		"api_url":      "http://localhost:8000",
		"log_level":    "info",
		"log_format":   "text",
		"devices_file": "",
		"timeouts": map[string]any{
			"analyze":    "30s",
			"explain":    "30s",
			"plan":       "120s",
			"transcribe": "60s",
			"tts":        "20s",
			"export":     "60s",
		},
		"speech": map[string]any{
			"enabled":          true,
			"rate":             1.1,
			"pitch":            1.0,
			"preferred_vendor": "Google",
			"local":            true,
		},
		"cache": map[string]any{
			"backend":   CacheMemory,
			"redis_url": "redis://localhost:6379/0",
			"dir":       ".tripvoice/cache",
			"ttl":       "24h",

			"encryption_key": "",
			"previous_keys":  []any{},
		},
		"server": map[string]any{
			"addr": ":8080",
		},
		"export": map[string]any{
			"dir":    "exports",
			"unique": false,
		},
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return cfg
}

// Load reads path (optional; a missing file is not an error when path is
// empty) and applies environment overrides from os.Environ.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Environ())
}

// LoadWithEnv is Load with an explicit environment, in "KEY=value" form.
func LoadWithEnv(path string, environ []string) (*Config, error) {
	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := merge(raw, file, ""); err != nil {
			return nil, err
		}
	}

	applyEnv(raw, environ)

	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the assistant cannot run with.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url %q is not an absolute URL", c.APIURL))
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis, CacheBadger:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none, memory, redis, badger", c.Cache.Backend))
	}
	if c.Cache.EncryptionKey != "" {
		if _, err := c.Cache.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Speech.Rate <= 0 || c.Speech.Pitch <= 0 {
		errs = append(errs, errors.New("speech.rate and speech.pitch must be positive"))
	}
	return errors.Join(errs...)
}

// Keys decodes the cache encryption keys. The active key comes first.
func (c Cache) Keys() ([][]byte, error) {
	var keys [][]byte
	for i, k := range append([]string{c.EncryptionKey}, c.PreviousKeys...) {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(k))
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("cache key %d is not a base64 encoded 32 byte key", i)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func decode(raw map[string]any) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// merge overlays src onto dst. Sections must stay sections.
func merge(dst, src map[string]any, path string) error {
	for k, v := range src {
		key := path + k
		existing, isSection := dst[k].(map[string]any)
		if !isSection {
			dst[k] = v
			continue
		}
		sub, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q must be a section", key)
		}
		if err := merge(existing, sub, key+"."); err != nil {
			return err
		}
	}
	return nil
}

// applyEnv maps TRIPVOICE_API_URL to api_url and TRIPVOICE_CACHE_REDIS_URL to
// cache.redis_url. Variables that match no known key are ignored.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))

		if _, isSection := raw[key].(map[string]any); !isSection {
			if _, known := raw[key]; known {
				raw[key] = value
				continue
			}
		}
		for section, v := range raw {
			sub, isSection := v.(map[string]any)
			if !isSection || !strings.HasPrefix(key, section+"_") {
				continue
			}
			field := strings.TrimPrefix(key, section+"_")
			if _, known := sub[field]; known {
				sub[field] = value
			}
		}
	}
}
