package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the modelkit configuration
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Conventions ConventionsConfig `mapstructure:"conventions"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ConventionsConfig selects the conventions applied while building a model
type ConventionsConfig struct {
	Disabled []string `mapstructure:"disabled"`
}

// DispatchConfig represents event dispatch configuration
type DispatchConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// CacheConfig represents snapshot cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the connection to a Redis snapshot cache
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	cacheBackends = []string{CacheNone, CacheMemory, CacheRedis}
	drivers       = []string{"sqlite3", "postgres", "pgx"}
)

// Load reads configuration from path, or from modelkit.yml in the working directory
// when path is empty. MODELKIT_* environment variables override file values, for
// example MODELKIT_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("conventions.disabled", []string{})
	v.SetDefault("dispatch.max_depth", 64)
	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.prefix", "modelkit:snapshot:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modelkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MODELKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("log.level must be one of %s, got: %s", strings.Join(logLevels, ", "), cfg.Log.Level)
	}
	if cfg.Dispatch.MaxDepth < 1 {
		return fmt.Errorf("dispatch.max_depth must be positive, got: %d", cfg.Dispatch.MaxDepth)
	}
	if !contains(cacheBackends, cfg.Cache.Backend) {
		return fmt.Errorf("cache.backend must be one of %s, got: %s", strings.Join(cacheBackends, ", "), cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == CacheRedis && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if !contains(drivers, cfg.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %s, got: %s", strings.Join(drivers, ", "), cfg.Database.Driver)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
