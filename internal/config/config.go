package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Homeserver HomeserverConfig `mapstructure:"homeserver"`
	Media      MediaConfig      `mapstructure:"media"`
	Stats      StatsConfig      `mapstructure:"stats"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type HomeserverConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
}

type MediaConfig struct {
	FetchTimeout time.Duration   `mapstructure:"fetch_timeout"`
	AvatarSize   int             `mapstructure:"avatar_size"`
	MaxEntries   int             `mapstructure:"max_entries"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

type StatsConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	// Enable environment variable substitution
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set environment variable overrides
	viper.BindEnv("homeserver.base_url", "HOMESERVER_URL")
	viper.BindEnv("homeserver.access_token", "HOMESERVER_TOKEN")
	viper.BindEnv("storage.redis.addr", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8090")
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("media.fetch_timeout", 15*time.Second)
	viper.SetDefault("media.avatar_size", 64)
	viper.SetDefault("media.max_entries", 2048)
	viper.SetDefault("media.rate_limit.enabled", true)
	viper.SetDefault("media.rate_limit.requests_per_second", 20)
	viper.SetDefault("media.rate_limit.burst", 40)
	viper.SetDefault("stats.page_size", 100)
	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.default_expiration", time.Hour)
	viper.SetDefault("storage.memory.cleanup_interval", 10*time.Minute)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("monitoring.metrics.path", "/metrics")
	viper.SetDefault("i18n.default_language", "en")
	viper.SetDefault("i18n.languages", []string{"en", "de"})
}

func validateConfig(cfg *Config) error {
	if cfg.Homeserver.BaseURL == "" {
		return fmt.Errorf("homeserver base_url is required")
	}
	if cfg.Homeserver.AccessToken == "" {
		return fmt.Errorf("homeserver access_token is required")
	}
	if cfg.Stats.PageSize <= 0 {
		return fmt.Errorf("stats page_size must be positive")
	}
	return nil
}
