package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Shopify   ShopifyConfig
	Sync      SyncConfig
	AuditLog  AuditLogConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	GormLevel  string // silent, error, warn, info
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// When Enabled is false the single-flight guard stays in process.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockKey  string
	LockTTL  time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	TrustedProxies  []string
}

// ShopifyConfig holds the remote catalog API settings
type ShopifyConfig struct {
	StoreDomain   string
	AccessToken   string
	APIVersion    string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// SyncConfig holds the batch sync settings
type SyncConfig struct {
	PageSize       int
	FlushThreshold int
	RequestDelay   time.Duration
	SkipTags       []string
	ClearSkipped   bool
}

// AuditLogConfig holds the mutation response log settings
type AuditLogConfig struct {
	Dir         string
	Prefix      string
	MaxBuffered int
}

// StorageConfig holds S3-compatible archive settings for audit files
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	UsePathStyle    bool
}

// SchedulerConfig holds the periodic sync trigger settings
type SchedulerConfig struct {
	IntervalEnabled bool
	Interval        time.Duration
	HistorySize     int
	StopTimeout     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration. Enabled turns on metric
// export; traces and the log bridge are switched on separately and share the
// collector endpoint.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	TracingEnabled    bool
	SamplingRatio     float64
	DBTraceVariables  bool
	LogsEnabled       bool
	LogsLevel         string
}

// Load loads configuration from the .env file, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CATALOG_ prefix (e.g., CATALOG_SHOPIFY_ACCESS_TOKEN)
// 2. .env file (never overrides variables already set)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockKey:  v.GetString("redis.lock_key"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
			GormLevel:  v.GetString("log.gorm_level"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Shopify: ShopifyConfig{
			StoreDomain:   v.GetString("shopify.store_domain"),
			AccessToken:   v.GetString("shopify.access_token"),
			APIVersion:    v.GetString("shopify.api_version"),
			Timeout:       v.GetDuration("shopify.timeout"),
			RetryAttempts: v.GetInt("shopify.retry_attempts"),
			RetryDelay:    v.GetDuration("shopify.retry_delay"),
		},
		Sync: SyncConfig{
			PageSize:       v.GetInt("sync.page_size"),
			FlushThreshold: v.GetInt("sync.flush_threshold"),
			RequestDelay:   v.GetDuration("sync.request_delay"),
			SkipTags:       splitList(v.Get("sync.skip_tags")),
			ClearSkipped:   v.GetBool("sync.clear_skipped"),
		},
		AuditLog: AuditLogConfig{
			Dir:         v.GetString("audit_log.dir"),
			Prefix:      v.GetString("audit_log.prefix"),
			MaxBuffered: v.GetInt("audit_log.max_buffered"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			KeyPrefix:       v.GetString("storage.key_prefix"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Scheduler: SchedulerConfig{
			IntervalEnabled: v.GetBool("scheduler.interval_enabled"),
			Interval:        v.GetDuration("scheduler.interval"),
			HistorySize:     v.GetInt("scheduler.history_size"),
			StopTimeout:     v.GetDuration("scheduler.stop_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			TracingEnabled:    v.GetBool("telemetry.tracing_enabled"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			DBTraceVariables:  v.GetBool("telemetry.db_trace_variables"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			LogsLevel:         v.GetString("telemetry.logs_level"),
		},
	}

	// Defaults are applied to sync values only when the key is absent, since
	// zero is a meaningful request delay.
	if !v.IsSet("sync.request_delay") {
		cfg.Sync.RequestDelay = DefaultRequestDelay
	}
	if !v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = 1.0
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Sync defaults
const (
	DefaultPageSize       = 1000
	DefaultFlushThreshold = 50
	DefaultRequestDelay   = time.Second
)

// splitList accepts either a TOML array or a comma separated string
// (the form used in environment variables) and returns trimmed, non-empty items.
func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = strings.Split(fmt.Sprint(val), ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalog"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockKey == "" {
		cfg.Redis.LockKey = "catalog-sync:lock:product-refresh"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 6 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
	if cfg.Log.GormLevel == "" {
		cfg.Log.GormLevel = "warn"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2025-04"
	}
	if cfg.Shopify.Timeout == 0 {
		cfg.Shopify.Timeout = 30 * time.Second
	}
	if cfg.Shopify.RetryAttempts == 0 {
		cfg.Shopify.RetryAttempts = 3
	}
	if cfg.Shopify.RetryDelay == 0 {
		cfg.Shopify.RetryDelay = 2 * time.Second
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = DefaultPageSize
	}
	if cfg.Sync.FlushThreshold == 0 {
		cfg.Sync.FlushThreshold = DefaultFlushThreshold
	}
	if cfg.AuditLog.Dir == "" {
		cfg.AuditLog.Dir = "."
	}
	if cfg.AuditLog.Prefix == "" {
		cfg.AuditLog.Prefix = "response"
	}
	if cfg.AuditLog.MaxBuffered == 0 {
		cfg.AuditLog.MaxBuffered = 10000
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "audit"
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 6 * time.Hour
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 20
	}
	if cfg.Scheduler.StopTimeout == 0 {
		cfg.Scheduler.StopTimeout = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalog-sync"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.PageSize < 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if c.Sync.FlushThreshold < 0 {
		return fmt.Errorf("sync.flush_threshold must be positive")
	}
	if c.Sync.RequestDelay < 0 {
		return fmt.Errorf("sync.request_delay cannot be negative")
	}
	if c.AuditLog.MaxBuffered < c.Sync.FlushThreshold {
		return fmt.Errorf("audit_log.max_buffered (%d) cannot be smaller than sync.flush_threshold (%d)",
			c.AuditLog.MaxBuffered, c.Sync.FlushThreshold)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)
	}
	if c.Scheduler.IntervalEnabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval)
	}

	if c.App.Env == "production" {
		if c.Shopify.StoreDomain == "" || c.Shopify.AccessToken == "" {
			return fmt.Errorf("shopify.store_domain and shopify.access_token are required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
