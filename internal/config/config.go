// Package config loads the scripture configuration from an embedded default,
// an optional YAML file and environment overrides, in that order.
package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Environment variables overriding file values.
const (
	EnvBibleAPIKey    = "BIBLE_API_KEY"
	EnvBibleBaseURL   = "BIBLE_BASE_URL"
	EnvDefaultBibleID = "DEFAULT_BIBLE_ID"
	EnvChatAPIKey     = "OPENROUTER_API_KEY"
	EnvChatAPIURL     = "OPENROUTER_API_URL"
	EnvRedisURL       = "REDIS_URL"
	EnvLogLevel       = "LOG_LEVEL"
)

type BibleConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	DefaultBibleID  string `yaml:"default_bible_id"`
	UserAgent       string `yaml:"user_agent"`
	PassageTTL      string `yaml:"passage_ttl"`
	SearchTTL       string `yaml:"search_ttl"`
	MetadataTTL     string `yaml:"metadata_ttl"`
	BookConcurrency int    `yaml:"book_concurrency"`
}

type ChatConfig struct {
	APIKey  string `yaml:"api_key"`
	APIURL  string `yaml:"api_url"`
	Model   string `yaml:"model"`
	Referer string `yaml:"referer"`
}

type QueueConfig struct {
	MinInterval string `yaml:"min_interval"`
	BufferDelay string `yaml:"buffer_delay"`
}

type RateLimitConfig struct {
	MaxRequests     int    `yaml:"max_requests"`
	Window          string `yaml:"window"`
	DefaultCooldown string `yaml:"default_cooldown"`
}

type RetryConfig struct {
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
	MaxDelay   string `yaml:"max_delay"`
}

type CacheConfig struct {
	ContentSize int `yaml:"content_size"`
}

type PreloadConfig struct {
	Enabled     bool `yaml:"enabled"`
	FactsPerDay int  `yaml:"facts_per_day"`
}

type RedisConfig struct {
	// URL of a Redis server sharing the cooldown between processes.
	// Empty keeps the cooldown in memory.
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	Bible     BibleConfig     `yaml:"bible"`
	Chat      ChatConfig      `yaml:"chat"`
	Queue     QueueConfig     `yaml:"queue"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Cache     CacheConfig     `yaml:"cache"`
	Preload   PreloadConfig   `yaml:"preload"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/scripture/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "scripture", "config.yaml")
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads path over the embedded defaults and applies environment
// overrides. A missing file is not an error. An empty path uses
// DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshalling onto the defaults keeps every key the file omits.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Bible.APIKey, EnvBibleAPIKey)
	set(&c.Bible.BaseURL, EnvBibleBaseURL)
	set(&c.Bible.DefaultBibleID, EnvDefaultBibleID)
	set(&c.Chat.APIKey, EnvChatAPIKey)
	set(&c.Chat.APIURL, EnvChatAPIURL)
	set(&c.Redis.URL, EnvRedisURL)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate checks URLs and durations. Missing credentials are not an error:
// the clients report them on use.
func (c *Config) Validate() error {
	urls := []struct {
		name, value string
		schemes     []string
	}{
		{"bible.base_url", c.Bible.BaseURL, []string{"http", "https"}},
		{"chat.api_url", c.Chat.APIURL, []string{"http", "https"}},
		{"redis.url", c.Redis.URL, []string{"redis", "rediss"}},
	}
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		if err := validateURL(u.value, u.schemes); err != nil {
			return fmt.Errorf("%s: %w", u.name, err)
		}
	}

	durations := map[string]string{
		"bible.passage_ttl":           c.Bible.PassageTTL,
		"bible.search_ttl":            c.Bible.SearchTTL,
		"bible.metadata_ttl":          c.Bible.MetadataTTL,
		"queue.min_interval":          c.Queue.MinInterval,
		"queue.buffer_delay":          c.Queue.BufferDelay,
		"rate_limit.window":           c.RateLimit.Window,
		"rate_limit.default_cooldown": c.RateLimit.DefaultCooldown,
		"retry.timeout":               c.Retry.Timeout,
		"retry.base_delay":            c.Retry.BaseDelay,
		"retry.max_delay":             c.Retry.MaxDelay,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}

	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests: must not be negative, got %d", c.RateLimit.MaxRequests)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries: must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Cache.ContentSize < 0 {
		return fmt.Errorf("cache.content_size: must not be negative, got %d", c.Cache.ContentSize)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

func validateURL(raw string, schemes []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("url %q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("url scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
}

// Duration parses a validated duration string, returning fallback when it
// is empty.
func Duration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Redacted returns a copy safe to print, with credentials masked.
func (c Config) Redacted() Config {
	c.Bible.APIKey = mask(c.Bible.APIKey)
	c.Chat.APIKey = mask(c.Chat.APIKey)
	if u, err := url.Parse(c.Redis.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			c.Redis.URL = u.String()
		}
	}
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
