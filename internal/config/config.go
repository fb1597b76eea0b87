package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"SERVER_PORT"`
	Host            string        `mapstructure:"SERVER_HOST"`
	Env             string        `mapstructure:"ENV"`
	ReadTimeout     time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"REDIS_ENABLED"`
	Host      string        `mapstructure:"REDIS_HOST"`
	Port      string        `mapstructure:"REDIS_PORT"`
	Password  string        `mapstructure:"REDIS_PASSWORD"`
	DB        int           `mapstructure:"REDIS_DB"`
	KeyPrefix string        `mapstructure:"REDIS_KEY_PREFIX"`
	ViewTTL   time.Duration `mapstructure:"REDIS_VIEW_TTL"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"SCHEDULER_ENABLED"`
	Spec     string `mapstructure:"SCHEDULER_SPEC"`
	Timezone string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	MaxTermMonths        int `mapstructure:"MAX_TERM_MONTHS"`
	DelinquencyThreshold int `mapstructure:"DELINQUENCY_THRESHOLD"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var envFiles = []string{".env", "deployments/.env"}

// Load reads configuration from environment variables and optional .env files.
// Variables already set in the environment win over .env values.
func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "loan-ledger:")
	v.SetDefault("REDIS_VIEW_TTL", "5m")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_SPEC", "0 0 1 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MAX_TERM_MONTHS", 120)
	v.SetDefault("DELINQUENCY_THRESHOLD", 3)
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %s", c.Database.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres, sqlite3 or memory, got %q", c.Database.Driver)
	}

	if c.Business.MaxTermMonths <= 0 {
		return fmt.Errorf("MAX_TERM_MONTHS must be greater than 0")
	}

	if c.Business.DelinquencyThreshold <= 0 {
		return fmt.Errorf("DELINQUENCY_THRESHOLD must be greater than 0")
	}

	if c.Scheduler.Enabled {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Scheduler.Spec); err != nil {
			return fmt.Errorf("SCHEDULER_SPEC must be a valid cron spec with seconds: %w", err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// RedisAddr returns the host:port of the Redis server
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// Location returns the scheduler time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
