// Package config loads the service configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables. The result is validated before use.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/image-redirect/pkg/cache"
	"github.com/Sternrassler/image-redirect/pkg/session"
	"github.com/Sternrassler/image-redirect/pkg/upstream"
)

// EnvConfigPath names the config file when no -config flag is given.
const EnvConfigPath = "IMAGE_REDIRECT_CONFIG"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultUserAgent identifies the service to the image API.
const DefaultUserAgent = "image-redirect/0.1.0"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig controls the image API client.
type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CacheConfig selects the resolver cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the connection settings of the redis backend.
// Addr accepts host:port or a redis:// URL. The namespace is always cleared
// at startup, so no resolution outlives the process that made it.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// SessionConfig controls the session cookie. Key is hex encoded.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	Key        string `yaml:"key"`
	Secure     bool   `yaml:"secure"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              45123,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:   upstream.DefaultBaseURL,
			UserAgent: DefaultUserAgent,
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Namespace: cache.DefaultNamespace,
			},
		},
		Session: SessionConfig{
			CookieName: session.DefaultCookieName,
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Upstream.BaseURL = getEnv("UPSTREAM_URL", c.Upstream.BaseURL)
	c.Upstream.UserAgent = getEnv("USER_AGENT", c.Upstream.UserAgent)
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Redis.Addr = getEnv("REDIS_URL", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getEnv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.Session.Key = getEnv("SESSION_KEY", c.Session.Key)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	var err error
	if c.Server.Port, err = getEnvInt("PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Cache.Redis.DB, err = getEnvInt("REDIS_DB", c.Cache.Redis.DB); err != nil {
		return err
	}
	if c.Log.Pretty, err = getEnvBool("LOG_PRETTY", c.Log.Pretty); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be >= 0 (got %s)", c.Server.ShutdownTimeout)
	}
	if c.Upstream.UserAgent == "" {
		return errors.New("upstream.user_agent is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0 (got %s)", c.Upstream.Timeout)
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
		if c.Cache.Redis.DB < 0 {
			return fmt.Errorf("cache.redis.db must be >= 0 (got %d)", c.Cache.Redis.DB)
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q (got %q)", BackendMemory, BackendRedis, c.Cache.Backend)
	}

	if _, err := c.SessionKey(); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SessionKey decodes the configured session key. It returns nil when no key
// is configured.
func (c Config) SessionKey() ([]byte, error) {
	if c.Session.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Session.Key)
	if err != nil {
		return nil, fmt.Errorf("session.key must be hex encoded: %w", err)
	}
	if len(key) < session.MinKeyLength {
		return nil, fmt.Errorf("session.key must decode to at least %d bytes (got %d)", session.MinKeyLength, len(key))
	}
	return key, nil
}

// RedisURL reports whether the redis address is a redis:// or rediss:// URL.
func (r RedisConfig) RedisURL() bool {
	return strings.HasPrefix(r.Addr, "redis://") || strings.HasPrefix(r.Addr, "rediss://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got %q)", key, value)
	}
	return b, nil
}
