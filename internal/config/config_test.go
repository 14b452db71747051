package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "UPSTREAM_URL", "USER_AGENT", "CACHE_BACKEND", "REDIS_URL",
	"REDIS_PASSWORD", "REDIS_DB", "SESSION_KEY", "LOG_LEVEL", "LOG_PRETTY",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:45123", cfg.Addr())
	assert.Equal(t, "https://t.alcy.cc", cfg.Upstream.BaseURL)
	assert.Equal(t, DefaultUserAgent, cfg.Upstream.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, "session_id", cfg.Session.CookieName)
	assert.Equal(t, "debug", cfg.Log.Level)

	key, err := cfg.SessionKey()
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, `
server:
  host: 127.0.0.1
  port: 8080
  shutdown_timeout: 5s
upstream:
  base_url: http://images.internal
  timeout: 2s
cache:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
    namespace: staging
log:
  level: info
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadHeaderTimeout, "unset keys keep defaults")
	assert.Equal(t, "http://images.internal", cfg.Upstream.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, "staging", cfg.Cache.Redis.Namespace)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server:\n  port: 8080\nlog:\n  level: info\n")

	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SESSION_KEY", strings.Repeat("ab", 32))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, BackendRedis, cfg.Cache.Backend)
	assert.True(t, cfg.Cache.Redis.RedisURL())

	key, err := cfg.SessionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{
			name:    "port not a number",
			env:     map[string]string{"PORT": "http"},
			wantErr: `PORT must be an integer (got "http")`,
		},
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "server.port must be between 1 and 65535 (got 70000)",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"CACHE_BACKEND": "memcached"},
			wantErr: `cache.backend must be "memory" or "redis" (got "memcached")`,
		},
		{
			name:    "bad pretty flag",
			env:     map[string]string{"LOG_PRETTY": "maybe"},
			wantErr: `LOG_PRETTY must be a boolean (got "maybe")`,
		},
		{
			name:    "session key not hex",
			env:     map[string]string{"SESSION_KEY": "zz"},
			wantErr: "session.key must be hex encoded",
		},
		{
			name:    "session key too short",
			env:     map[string]string{"SESSION_KEY": "abcd"},
			wantErr: "session.key must decode to at least 32 bytes (got 2)",
		},
		{
			name:    "negative timeout",
			file:    "upstream:\n  timeout: -1s\n",
			wantErr: "upstream.timeout must be > 0 (got -1s)",
		},
		{
			name:    "zero timeout",
			file:    "upstream:\n  timeout: 0s\n",
			wantErr: "upstream.timeout must be > 0 (got 0s)",
		},
		{
			name:    "empty user agent",
			file:    "upstream:\n  user_agent: \"\"\n",
			wantErr: "upstream.user_agent is required",
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: "parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
