// Package models - Service configuration and operational settings.
// This file defines the configuration tree for every proxygate component.
//
// Configuration Philosophy:
// - Hierarchical configuration grouped by component (server, storage, security, ...)
// - Defaults that run out of the box with in-memory storage
// - Validation catches misconfigurations before anything starts listening
package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Cache type constants
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Proxy and log persistence
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Authentication and admission control
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Cache         CacheConfig         `yaml:"cache" json:"cache"`                 // Proxy check result cache
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
	RequestLog    RequestLogConfig    `yaml:"request_log" json:"request_log"`     // Request and error log recording
	ProxyCheck    ProxyCheckConfig    `yaml:"proxy_check" json:"proxy_check"`     // Outbound proxy probing
	Health        HealthConfig        `yaml:"health" json:"health"`               // Health probes and thresholds
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type SecurityConfig struct {
	EnableAuth bool            `yaml:"enable_auth" json:"enable_auth"`
	APIKeys    []APIKey        `yaml:"api_keys" json:"api_keys"`
	RateLimit  RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures the per-client admission controller.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int           `yaml:"requests_per_hour" json:"requests_per_hour"`
	BurstCapacity     int           `yaml:"burst_capacity" json:"burst_capacity"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	RetentionWindow   time.Duration `yaml:"retention_window" json:"retention_window"`
	ExemptPaths       []string      `yaml:"exempt_paths" json:"exempt_paths"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Type    string        `yaml:"type" json:"type"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
	Memory  MemoryConfig  `yaml:"memory" json:"memory"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type MemoryConfig struct {
	MaxSize         int           `yaml:"max_size" json:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName    string        `yaml:"service_name" json:"service_name"`
	ServiceVersion string        `yaml:"service_version" json:"service_version"`
	Tracing        TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// RequestLogConfig controls asynchronous request/error log recording and
// retention.
type RequestLogConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	BufferSize      int           `yaml:"buffer_size" json:"buffer_size"`
	MaxBodySize     int           `yaml:"max_body_size" json:"max_body_size"`
	RetentionDays   int           `yaml:"retention_days" json:"retention_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
}

type ProxyCheckConfig struct {
	TargetURL       string        `yaml:"target_url" json:"target_url"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	ChecksPerSecond float64       `yaml:"checks_per_second" json:"checks_per_second"`
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
}

type HealthConfig struct {
	CheckTimeout         time.Duration    `yaml:"check_timeout" json:"check_timeout"`
	MetricsCacheDuration time.Duration    `yaml:"metrics_cache_duration" json:"metrics_cache_duration"`
	Thresholds           HealthThresholds `yaml:"thresholds" json:"thresholds"`
}

// HealthThresholds are percentages at which a resource is reported as
// degraded (warning) or unhealthy (critical).
type HealthThresholds struct {
	CPUWarning     float64 `yaml:"cpu_warning" json:"cpu_warning"`
	CPUCritical    float64 `yaml:"cpu_critical" json:"cpu_critical"`
	MemoryWarning  float64 `yaml:"memory_warning" json:"memory_warning"`
	MemoryCritical float64 `yaml:"memory_critical" json:"memory_critical"`
	DiskWarning    float64 `yaml:"disk_warning" json:"disk_warning"`
	DiskCritical   float64 `yaml:"disk_critical" json:"disk_critical"`
}

// NewDefaultConfig creates a configuration that runs without any external
// dependency: in-memory storage and cache, stdout logging, Prometheus on 9090.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			EnableAuth: false,
			APIKeys:    []APIKey{},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				BurstCapacity:     10,
				CleanupInterval:   5 * time.Minute,
				RetentionWindow:   time.Hour,
				ExemptPaths:       []string{"/health", "/docs", "/redoc", "/openapi", "/static"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    CacheTypeMemory,
			TTL:     5 * time.Minute,
			Redis: RedisConfig{
				PoolSize:  10,
				KeyPrefix: "proxygate:",
			},
			Memory: MemoryConfig{
				MaxSize:         1000,
				CleanupInterval: 10 * time.Minute,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName:    "proxygate",
			ServiceVersion: "1.0.0",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
		RequestLog: RequestLogConfig{
			Enabled:         true,
			BufferSize:      1024,
			MaxBodySize:     DefaultMaxBodySize,
			RetentionDays:   30,
			CleanupInterval: 24 * time.Hour,
			MaxRetries:      3,
		},
		ProxyCheck: ProxyCheckConfig{
			TargetURL:       "https://www.google.com",
			Timeout:         10 * time.Second,
			ChecksPerSecond: 5,
			Concurrency:     10,
		},
		Health: HealthConfig{
			CheckTimeout:         30 * time.Second,
			MetricsCacheDuration: 10 * time.Second,
			Thresholds: HealthThresholds{
				CPUWarning:     80,
				CPUCritical:    95,
				MemoryWarning:  80,
				MemoryCritical: 90,
				DiskWarning:    80,
				DiskCritical:   95,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	if err := c.RequestLog.Validate(); err != nil {
		return fmt.Errorf("invalid request log config: %w", err)
	}

	if err := c.ProxyCheck.Validate(); err != nil {
		return fmt.Errorf("invalid proxy check config: %w", err)
	}

	if err := c.Health.Validate(); err != nil {
		return fmt.Errorf("invalid health config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	if stc.Database.MaxOpenConns < 0 || stc.Database.MaxIdleConns < 0 {
		return errors.New("connection pool sizes cannot be negative")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if err := sec.RateLimit.Validate(); err != nil {
		return err
	}

	for _, apiKey := range sec.APIKeys {
		if apiKey.Key == "" {
			return errors.New("API key cannot be empty")
		}
		if apiKey.Name == "" {
			return errors.New("API key name cannot be empty")
		}
		for _, p := range apiKey.Permissions {
			if !IsValidPermission(p) {
				return fmt.Errorf("API key %q has invalid permission: %s", apiKey.Name, p)
			}
		}
	}

	if sec.EnableAuth && len(sec.APIKeys) == 0 {
		return errors.New("at least one API key is required when auth is enabled")
	}

	return nil
}

func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}
	if rl.RequestsPerMinute < 1 {
		return errors.New("requests per minute must be at least 1")
	}
	if rl.RequestsPerHour < 1 {
		return errors.New("requests per hour must be at least 1")
	}
	if rl.BurstCapacity < 1 {
		return errors.New("burst capacity must be at least 1")
	}
	if rl.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	if rl.RetentionWindow < 0 {
		return errors.New("retention window cannot be negative")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (cc *CacheConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	switch cc.Type {
	case CacheTypeMemory:
		if cc.Memory.MaxSize < 0 {
			return errors.New("memory cache max size cannot be negative")
		}
	case CacheTypeRedis:
		if cc.Redis.Addr == "" {
			return errors.New("Redis address is required when cache type is redis")
		}
	default:
		return fmt.Errorf("invalid cache type: %s", cc.Type)
	}

	if cc.TTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required when exporter is otlp")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

func (rc *RequestLogConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.BufferSize < 1 {
		return errors.New("buffer size must be at least 1")
	}
	if rc.MaxBodySize < 0 {
		return errors.New("max body size cannot be negative")
	}
	if rc.RetentionDays < 0 {
		return errors.New("retention days cannot be negative")
	}
	if rc.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	return nil
}

func (pc *ProxyCheckConfig) Validate() error {
	u, err := url.Parse(pc.TargetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid target url: %q", pc.TargetURL)
	}
	if pc.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if pc.ChecksPerSecond <= 0 {
		return errors.New("checks per second must be positive")
	}
	if pc.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	return nil
}

func (hc *HealthConfig) Validate() error {
	if hc.CheckTimeout < 0 {
		return errors.New("check timeout cannot be negative")
	}
	if hc.MetricsCacheDuration < 0 {
		return errors.New("metrics cache duration cannot be negative")
	}
	t := hc.Thresholds
	pairs := []struct {
		name              string
		warning, critical float64
	}{
		{"cpu", t.CPUWarning, t.CPUCritical},
		{"memory", t.MemoryWarning, t.MemoryCritical},
		{"disk", t.DiskWarning, t.DiskCritical},
	}
	for _, p := range pairs {
		if p.warning < 0 || p.critical > 100 || p.warning > p.critical {
			return fmt.Errorf("%s thresholds must satisfy 0 <= warning <= critical <= 100", p.name)
		}
	}
	return nil
}
