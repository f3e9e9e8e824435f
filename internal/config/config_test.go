package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"proxygate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	configFile := writeFile(t, "test_config.yaml", `
server:
  port: 8081
  host: "localhost"
  read_timeout: 15s
  cors:
    enabled: true
    allowed_origins: ["https://admin.example.com"]

storage:
  type: "sqlite"
  database:
    dsn: "/tmp/proxygate.db"

security:
  enable_auth: true
  api_keys:
    - key: "pg_live_key_123"
      name: "Ops"
      permissions: ["read", "write"]
      enabled: true
  rate_limit:
    enabled: true
    requests_per_minute: 120
    requests_per_hour: 5000
    burst_capacity: 20
    cleanup_interval: 10m
    retention_window: 2h
    exempt_paths: ["/health", "/status"]

logging:
  level: "debug"
  format: "text"

request_log:
  enabled: true
  buffer_size: 64
  retention_days: 7

proxy_check:
  target_url: "https://example.com/ping"
  timeout: 3s
  checks_per_second: 2
  concurrency: 4
`)

	config, err := Load(configFile, "")
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, []string{"https://admin.example.com"}, config.Server.CORS.AllowedOrigins)

	assert.Equal(t, models.StorageTypeSQLite, config.Storage.Type)
	assert.Equal(t, "/tmp/proxygate.db", config.Storage.Database.DSN)

	require.Len(t, config.Security.APIKeys, 1)
	assert.Equal(t, "Ops", config.Security.APIKeys[0].Name)
	assert.True(t, config.Security.APIKeys[0].HasPermission("write"))

	rl := config.Security.RateLimit
	assert.Equal(t, 120, rl.RequestsPerMinute)
	assert.Equal(t, 5000, rl.RequestsPerHour)
	assert.Equal(t, 20, rl.BurstCapacity)
	assert.Equal(t, 10*time.Minute, rl.CleanupInterval)
	assert.Equal(t, 2*time.Hour, rl.RetentionWindow)
	assert.Equal(t, []string{"/health", "/status"}, rl.ExemptPaths)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	assert.Equal(t, 64, config.RequestLog.BufferSize)
	assert.Equal(t, 7, config.RequestLog.RetentionDays)

	assert.Equal(t, "https://example.com/ping", config.ProxyCheck.TargetURL)
	assert.Equal(t, 3*time.Second, config.ProxyCheck.Timeout)
	assert.Equal(t, 4, config.ProxyCheck.Concurrency)
}

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, models.StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, 10, config.Security.RateLimit.BurstCapacity)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("PROXYGATE_PORT", "9000")
	t.Setenv("PROXYGATE_HOST", "127.0.0.1")
	t.Setenv("PROXYGATE_LOG_LEVEL", "warn")
	t.Setenv("PROXYGATE_RATE_LIMIT_REQUESTS_PER_MINUTE", "30")
	t.Setenv("PROXYGATE_RATE_LIMIT_BURST_CAPACITY", "5")
	t.Setenv("PROXYGATE_RATE_LIMIT_CLEANUP_INTERVAL", "1m")
	t.Setenv("PROXYGATE_RATE_LIMIT_EXEMPT_PATHS", "/health, /metrics ,")
	t.Setenv("PROXYGATE_CACHE_ENABLED", "false")
	t.Setenv("PROXYGATE_TRACING_SAMPLE_RATE", "0.25")

	config, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, 30, config.Security.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, config.Security.RateLimit.BurstCapacity)
	assert.Equal(t, time.Minute, config.Security.RateLimit.CleanupInterval)
	assert.Equal(t, []string{"/health", "/metrics"}, config.Security.RateLimit.ExemptPaths)
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, 0.25, config.Observability.Tracing.SampleRate)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	configFile := writeFile(t, "config.yaml", "server:\n  port: 8081\n")
	t.Setenv("PROXYGATE_PORT", "8082")

	config, err := Load(configFile, "")
	require.NoError(t, err)
	assert.Equal(t, 8082, config.Server.Port)
}

func TestLoad_InvalidEnvironmentValueIgnored(t *testing.T) {
	t.Setenv("PROXYGATE_PORT", "not-a-port")
	t.Setenv("PROXYGATE_CACHE_TTL", "forever")

	config, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 5*time.Minute, config.Cache.TTL)
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("PROXYGATE_ENABLE_AUTH", "true")
	t.Setenv("PROXYGATE_API_KEY", "pg_from_env_0001")

	config, err := Load("", "")
	require.NoError(t, err)

	require.Len(t, config.Security.APIKeys, 1)
	key := config.Security.APIKeys[0]
	assert.Equal(t, "environment", key.Name)
	assert.True(t, key.Matches("pg_from_env_0001"))
	assert.True(t, key.HasPermission(models.PermissionAdmin))
}

func TestLoad_WithEnvFile(t *testing.T) {
	// godotenv does not overwrite variables that are already set, so make
	// sure the test starts from a clean slate and restores it afterwards.
	t.Setenv("PROXYGATE_METRICS_PORT", "")
	require.NoError(t, os.Unsetenv("PROXYGATE_METRICS_PORT"))
	t.Setenv("PROXYGATE_LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("PROXYGATE_LOG_FORMAT"))

	envFile := writeFile(t, ".env", "PROXYGATE_METRICS_PORT=9191\nPROXYGATE_LOG_FORMAT=text\n")

	config, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 9191, config.Metrics.Port)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestLoad_EnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	t.Setenv("PROXYGATE_METRICS_PORT", "9292")
	envFile := writeFile(t, ".env", "PROXYGATE_METRICS_PORT=9191\n")

	config, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 9292, config.Metrics.Port)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configFile := writeFile(t, "invalid.yaml", "server:\n  port: [unclosed\n")

	_, err := Load(configFile, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_InvalidValues(t *testing.T) {
	configFile := writeFile(t, "config.yaml", `
security:
  rate_limit:
    enabled: true
    burst_capacity: 0
`)

	_, err := Load(configFile, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "burst capacity")
}

func TestLoad_EmptyConfigFile(t *testing.T) {
	configFile := writeFile(t, "empty.yaml", "")

	config, err := Load(configFile, "")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoad_DeprecatedKeysStillLoad(t *testing.T) {
	configFile := writeFile(t, "old.yaml", `
storage:
  type: memory
  path: ./data/releases.json
security:
  jwt_secret: "old"
  rate_limit:
    burst_size: 50
`)

	config, err := Load(configFile, "")
	require.NoError(t, err)
	// burst_size is no longer read; the default applies.
	assert.Equal(t, 10, config.Security.RateLimit.BurstCapacity)
}

func TestSaveExample_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveExample(path))

	config, err := Load(path, "")
	require.NoError(t, err)

	assert.True(t, config.Security.EnableAuth)
	require.Len(t, config.Security.APIKeys, 1)
	assert.True(t, config.Security.APIKeys[0].IsPlaceholder())
	assert.Equal(t, models.StorageTypeSQLite, config.Storage.Type)
	assert.Equal(t, 5*time.Minute, config.Security.RateLimit.CleanupInterval)
}
