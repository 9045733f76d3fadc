package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kosarica/store-service/internal/middleware"
	"github.com/kosarica/store-service/internal/preferences"
	"github.com/kosarica/store-service/internal/ranking"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Ranking     ranking.Config    `mapstructure:"ranking"`
	Hours       HoursConfig       `mapstructure:"hours"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	InternalAPIKey  string        `mapstructure:"internal_api_key"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds the preference store connection. An empty URL keeps
// preferences in memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// HoursConfig holds opening-hours resolution settings
type HoursConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location loads the configured IANA time zone.
func (h HoursConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid hours.timezone %q: %w", h.Timezone, err)
	}
	return loc, nil
}

// PreferencesConfig holds preference store settings
type PreferencesConfig struct {
	MaxRecentSearches int                       `mapstructure:"max_recent_searches"`
	TTL               time.Duration             `mapstructure:"ttl"`
	Breaker           preferences.BreakerConfig `mapstructure:"breaker"`
}

// RateLimitConfig holds rate limiting configuration for the internal API
type RateLimitConfig struct {
	Service middleware.RateLimiterConfig `mapstructure:"service"`
	Client  middleware.RateLimiterConfig `mapstructure:"client"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// ErrInvalidConfig is returned when a configuration value is unusable.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional, log but don't fail
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	// Enable environment variable override
	v.SetEnvPrefix("STORE_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind env keys for nested config
	bindEnvVars(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return ErrInvalidConfig{Field: "server.port", Reason: "must be between 1 and 65535"}
	}
	if err := c.Ranking.Validate(); err != nil {
		return ErrInvalidConfig{Field: "ranking", Reason: err.Error()}
	}
	if _, err := c.Hours.Location(); err != nil {
		return ErrInvalidConfig{Field: "hours.timezone", Reason: err.Error()}
	}
	if c.Preferences.MaxRecentSearches <= 0 {
		return ErrInvalidConfig{Field: "preferences.max_recent_searches", Reason: "must be positive"}
	}
	if c.Preferences.TTL < 0 {
		return ErrInvalidConfig{Field: "preferences.ttl", Reason: "must not be negative"}
	}
	if b := c.Preferences.Breaker; b.MaxFailures <= 0 || b.ResetTimeout <= 0 || b.HalfOpenMaxCalls <= 0 {
		return ErrInvalidConfig{Field: "preferences.breaker", Reason: "max_failures, reset_timeout and half_open_max_calls must be positive"}
	}
	for name, rl := range map[string]middleware.RateLimiterConfig{
		"rate_limit.service": c.RateLimit.Service,
		"rate_limit.client":  c.RateLimit.Client,
	} {
		if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
			return ErrInvalidConfig{Field: name, Reason: "requests_per_second and burst_size must be positive"}
		}
	}
	return nil
}

// loadEnvFile loads the first .env file found into the process environment
func loadEnvFile() error {
	envPaths := []string{
		".",
		"./config",
	}

	for _, path := range envPaths {
		envFile := filepath.Join(path, ".env")
		if _, err := os.Stat(envFile); err == nil {
			return godotenv.Load(envFile)
		}
	}
	return fmt.Errorf("no .env file found")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Redis
	v.BindEnv("redis.url", "REDIS_URL")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.internal_api_key", "INTERNAL_API_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.internal_api_key", "")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	// Redis defaults
	v.SetDefault("redis.url", "")

	// Ranking defaults
	rankingDefaults := ranking.Defaults()
	v.SetDefault("ranking.price_tolerance_cents", rankingDefaults.PriceToleranceCents)
	v.SetDefault("ranking.max_radius_km", rankingDefaults.MaxRadiusKm)

	// Hours defaults
	v.SetDefault("hours.timezone", "Europe/Zagreb")

	// Preferences defaults
	v.SetDefault("preferences.max_recent_searches", 10)
	v.SetDefault("preferences.ttl", time.Duration(0))
	breakerDefaults := preferences.DefaultBreakerConfig()
	v.SetDefault("preferences.breaker.max_failures", breakerDefaults.MaxFailures)
	v.SetDefault("preferences.breaker.reset_timeout", breakerDefaults.ResetTimeout)
	v.SetDefault("preferences.breaker.half_open_max_calls", breakerDefaults.HalfOpenMaxCalls)

	// Rate limit defaults
	v.SetDefault("rate_limit.service.requests_per_second", 50)
	v.SetDefault("rate_limit.service.burst_size", 100)
	clientDefaults := middleware.DefaultRateLimiterConfig()
	v.SetDefault("rate_limit.client.requests_per_second", clientDefaults.RequestsPerSecond)
	v.SetDefault("rate_limit.client.burst_size", clientDefaults.BurstSize)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}
