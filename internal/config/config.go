package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SchedulerConfig struct {
	ReminderCron string        `mapstructure:"reminder_cron"`
	Timezone     string        `mapstructure:"timezone"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BusinessConfig struct {
	ReminderWindowDays  int    `mapstructure:"reminder_window_days"`
	PaymentIntervalDays int    `mapstructure:"payment_interval_days"`
	CascadeRetries      int    `mapstructure:"cascade_retries"`
	DefaultTimezone     string `mapstructure:"default_timezone"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Supported values for DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "loan_tracker")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scheduler.reminder_cron", "0 0 9 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.job_timeout", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("business.reminder_window_days", 7)
	v.SetDefault("business.payment_interval_days", 30)
	v.SetDefault("business.cascade_retries", 2)
	v.SetDefault("business.default_timezone", "UTC")

	v.SetDefault("health.timeout", "5s")
}

// Load reads configuration from environment variables and an optional .env
// file. Keys map to environment names by upper-casing and replacing dots,
// so server.port is read from SERVER_PORT.
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required for postgres")
		}
	case DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for sqlite3")
		}
	case DriverRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of postgres, sqlite3, redis, memory; got %q", c.Database.Driver)
	}

	if c.Business.ReminderWindowDays <= 0 {
		return fmt.Errorf("BUSINESS_REMINDER_WINDOW_DAYS must be greater than 0")
	}

	if c.Business.PaymentIntervalDays <= 0 {
		return fmt.Errorf("BUSINESS_PAYMENT_INTERVAL_DAYS must be greater than 0")
	}

	if c.Business.CascadeRetries < 0 {
		return fmt.Errorf("BUSINESS_CASCADE_RETRIES must not be negative")
	}

	if _, err := time.LoadLocation(c.Business.DefaultTimezone); err != nil {
		return fmt.Errorf("BUSINESS_DEFAULT_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_TIMEOUT must be greater than 0")
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

// UsesSQL reports whether the configured store is reached through sqlx.
func (c *Config) UsesSQL() bool {
	return c.Database.Driver == DriverPostgres || c.Database.Driver == DriverSQLite
}

// UsesRedis reports whether a Redis client is needed, either as the store
// or for publishing reminders. Leaving REDIS_HOST empty disables Redis for
// the other drivers.
func (c *Config) UsesRedis() bool {
	return c.Database.Driver == DriverRedis || c.Redis.Host != ""
}

// DSN returns the connection string for the SQL driver.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// GetLocation returns the default business timezone
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetSchedulerLocation returns the timezone cron expressions are evaluated in
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
