package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"proxygate/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PROXYGATE_"

// Load builds the configuration from defaults, an optional YAML file, an
// optional dotenv file and PROXYGATE_* environment variables, in that order.
// Variables already present in the process environment win over the dotenv
// file.
func Load(configPath, envFile string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// deprecatedConfig mirrors renamed or removed config fields for detecting stale operator configs.
type deprecatedConfig struct {
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Security struct {
		JWTSecret string `yaml:"jwt_secret"`
		RateLimit struct {
			BurstSize *int `yaml:"burst_size"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
}

// warnDeprecatedKeys logs a warning for each stale config key found in the YAML data.
// The service continues to start normally - these keys are ignored by the main decoder.
func warnDeprecatedKeys(data []byte) {
	var dep deprecatedConfig
	if err := yaml.Unmarshal(data, &dep); err != nil {
		return
	}
	if dep.Storage.Path != "" {
		slog.Warn("Config key is no longer supported; file storage was replaced by sqlite. Set storage.type=sqlite and storage.database.dsn.", "config_key", "storage.path")
	}
	if dep.Security.JWTSecret != "" {
		slog.Warn("Config key is no longer used and can be removed from your config file.", "config_key", "security.jwt_secret")
	}
	if dep.Security.RateLimit.BurstSize != nil {
		slog.Warn("Config key was renamed; use security.rate_limit.burst_capacity.", "config_key", "security.rate_limit.burst_size")
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnDeprecatedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("Ignoring invalid integer environment variable", "name", envPrefix+name, "value", v)
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			slog.Warn("Ignoring invalid number environment variable", "name", envPrefix+name, "value", v)
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(envPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			slog.Warn("Ignoring invalid duration environment variable", "name", envPrefix+name, "value", v)
		}
	}
}

func envList(name string, dst *[]string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*dst = items
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("PORT", &config.Server.Port)
	envString("HOST", &config.Server.Host)
	envDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("TLS_ENABLED", &config.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envBool("CORS_ENABLED", &config.Server.CORS.Enabled)
	envList("CORS_ALLOWED_ORIGINS", &config.Server.CORS.AllowedOrigins)

	// Storage configuration
	envString("STORAGE_TYPE", &config.Storage.Type)
	envString("DATABASE_DSN", &config.Storage.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Storage.Database.MaxIdleConns)

	// Security configuration
	envBool("ENABLE_AUTH", &config.Security.EnableAuth)
	if key := os.Getenv(envPrefix + "API_KEY"); key != "" {
		config.Security.APIKeys = append(config.Security.APIKeys, models.APIKey{
			Key:         key,
			Name:        "environment",
			Permissions: []string{models.PermissionAdmin},
			Enabled:     true,
		})
	}

	// Admission control
	rl := &config.Security.RateLimit
	envBool("RATE_LIMIT_ENABLED", &rl.Enabled)
	envInt("RATE_LIMIT_REQUESTS_PER_MINUTE", &rl.RequestsPerMinute)
	envInt("RATE_LIMIT_REQUESTS_PER_HOUR", &rl.RequestsPerHour)
	envInt("RATE_LIMIT_BURST_CAPACITY", &rl.BurstCapacity)
	envDuration("RATE_LIMIT_CLEANUP_INTERVAL", &rl.CleanupInterval)
	envDuration("RATE_LIMIT_RETENTION_WINDOW", &rl.RetentionWindow)
	envList("RATE_LIMIT_EXEMPT_PATHS", &rl.ExemptPaths)

	// Logging configuration
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)
	envInt("LOG_MAX_SIZE", &config.Logging.MaxSize)
	envInt("LOG_MAX_BACKUPS", &config.Logging.MaxBackups)
	envInt("LOG_MAX_AGE", &config.Logging.MaxAge)
	envBool("LOG_COMPRESS", &config.Logging.Compress)

	// Cache configuration
	envBool("CACHE_ENABLED", &config.Cache.Enabled)
	envString("CACHE_TYPE", &config.Cache.Type)
	envDuration("CACHE_TTL", &config.Cache.TTL)
	envString("REDIS_ADDR", &config.Cache.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Cache.Redis.Password)
	envInt("REDIS_DB", &config.Cache.Redis.DB)
	envInt("REDIS_POOL_SIZE", &config.Cache.Redis.PoolSize)
	envInt("MEMORY_CACHE_MAX_SIZE", &config.Cache.Memory.MaxSize)
	envDuration("MEMORY_CACHE_CLEANUP_INTERVAL", &config.Cache.Memory.CleanupInterval)

	// Metrics and tracing
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	envFloat("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)

	// Request logs
	envBool("REQUEST_LOG_ENABLED", &config.RequestLog.Enabled)
	envInt("REQUEST_LOG_BUFFER_SIZE", &config.RequestLog.BufferSize)
	envInt("REQUEST_LOG_MAX_BODY_SIZE", &config.RequestLog.MaxBodySize)
	envInt("REQUEST_LOG_RETENTION_DAYS", &config.RequestLog.RetentionDays)
	envDuration("REQUEST_LOG_CLEANUP_INTERVAL", &config.RequestLog.CleanupInterval)

	// Proxy checks
	envString("PROXY_CHECK_TARGET_URL", &config.ProxyCheck.TargetURL)
	envDuration("PROXY_CHECK_TIMEOUT", &config.ProxyCheck.Timeout)
	envFloat("PROXY_CHECK_RATE", &config.ProxyCheck.ChecksPerSecond)
	envInt("PROXY_CHECK_CONCURRENCY", &config.ProxyCheck.Concurrency)

	// Health
	envDuration("HEALTH_CHECK_TIMEOUT", &config.Health.CheckTimeout)
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	config.Security.EnableAuth = true
	config.Security.APIKeys = []models.APIKey{
		{
			Key:         "please enter an admin key",
			Name:        "admin",
			Permissions: []string{models.PermissionAdmin},
			Enabled:     true,
		},
	}

	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/proxygate.db"

	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
