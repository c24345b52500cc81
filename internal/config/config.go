// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Database     DatabaseConfig      `mapstructure:"database"`
	Scheduler    SchedulerConfig     `mapstructure:"scheduler"`
	Cleanup      CleanupConfig       `mapstructure:"cleanup"`
	Missions     MissionsConfig      `mapstructure:"missions"`
	Metrics      MetricsConfig       `mapstructure:"metrics"`
	Logging      LoggingConfig       `mapstructure:"logging"`
	Achievements []AchievementConfig `mapstructure:"achievements"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Enabled  bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains background job scheduling settings.
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CleanupSchedule   string `mapstructure:"cleanup_schedule"`    // cron expression, default weekly
	MissionExpiryTime string `mapstructure:"mission_expiry_time"` // daily HH:MM for mission expiry sweep
	Timezone          string `mapstructure:"timezone"`
}

// CleanupConfig contains notification cleanup job settings.
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	BatchSize     int `mapstructure:"batch_size"`
}

// MissionsConfig contains mission tracking settings.
type MissionsConfig struct {
	CacheTTL int `mapstructure:"cache_ttl"` // seconds; active-mission list cache
}

// MetricsConfig contains Prometheus metrics exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AchievementConfig represents a seed achievement definition with its trigger.
type AchievementConfig struct {
	Name        string                 `mapstructure:"name"`
	Title       string                 `mapstructure:"title"`
	Description string                 `mapstructure:"description"`
	Icon        string                 `mapstructure:"icon"`
	TriggerType string                 `mapstructure:"trigger_type"`
	Trigger     map[string]interface{} `mapstructure:"trigger"`
	Points      int                    `mapstructure:"points"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/classquest/")
	}

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")
	_ = v.BindEnv("database.redis.enabled", "REDIS_ENABLED")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.cleanup_schedule", "SCHEDULER_CLEANUP_SCHEDULE")
	_ = v.BindEnv("scheduler.mission_expiry_time", "SCHEDULER_MISSION_EXPIRY_TIME")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Cleanup configuration
	_ = v.BindEnv("cleanup.retention_days", "CLEANUP_RETENTION_DAYS")
	_ = v.BindEnv("cleanup.batch_size", "CLEANUP_BATCH_SIZE")

	// Defaults for optional knobs
	v.SetDefault("cleanup.retention_days", 30)
	v.SetDefault("cleanup.batch_size", 500)
	v.SetDefault("missions.cache_ttl", 60)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.cleanup_schedule", "0 3 * * 0")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Enabled && c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required when redis is enabled")
	}
	if c.Cleanup.BatchSize <= 0 || c.Cleanup.BatchSize > 500 {
		return fmt.Errorf("cleanup.batch_size must be between 1 and 500")
	}
	if c.Cleanup.RetentionDays <= 0 {
		return fmt.Errorf("cleanup.retention_days must be positive")
	}
	for _, a := range c.Achievements {
		if a.Name == "" {
			return fmt.Errorf("achievement entries require a name")
		}
		if a.TriggerType != "clicks" && a.TriggerType != "sequence" {
			return fmt.Errorf("achievement %q: unknown trigger_type %q", a.Name, a.TriggerType)
		}
	}
	return nil
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
