package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds all configuration for the inventory engine
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Geo      GeoConfig
	RabbitMQ RabbitMQConfig
	Sync     SyncConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// BackendConfig holds the authoritative backend API configuration
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbePath      string        `mapstructure:"probe_path"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
}

// GeoConfig holds the geolocation collaborator configuration
type GeoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection configuration.
// An empty URL disables messaging entirely.
type RabbitMQConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PrefetchCount  int           `mapstructure:"prefetch_count"`
}

// SyncConfig holds the engine's periodic-task and threshold knobs
type SyncConfig struct {
	// SyncInterval is the offline queue drain timer
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	// AlertInterval is the alert engine scan timer
	AlertInterval time.Duration `mapstructure:"alert_interval"`
	// CacheTTL bounds read cache entries
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// QueuePath is the SQLite file backing the offline queue journal.
	// Empty keeps the queue memory-only.
	QueuePath string `mapstructure:"queue_path"`
	// ExpiryWarningDays is the expiring-soon alert window
	ExpiryWarningDays int `mapstructure:"expiry_warning_days"`
	// SlowMovingDays is the inactivity window for slow-moving alerts
	SlowMovingDays int `mapstructure:"slow_moving_days"`
	// ReorderLeadTimeDays feeds the reorder advisor's velocity adjustment
	ReorderLeadTimeDays int `mapstructure:"reorder_lead_time_days"`
	// ConsumptionWindowDays is the lookback used to compute velocity
	ConsumptionWindowDays int `mapstructure:"consumption_window_days"`
}

// Load loads configuration from environment and config files with
// development defaults applied.
func Load(serviceName string) (*Config, error) {
	return loadConfig(serviceName)
}

// LoadWithValidation loads configuration and validates it for the current
// environment. Use this in service main() for fail-fast behavior.
func LoadWithValidation(serviceName string) (*Config, error) {
	cfg, err := loadConfig(serviceName)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Environment == EnvProduction || cfg.Server.Environment == EnvStaging {
		if cfg.Backend.BaseURL == "" || strings.Contains(cfg.Backend.BaseURL, "localhost") {
			return nil, errors.New("FARMDASH_BACKEND_BASE_URL must be set to a non-localhost value in " + cfg.Server.Environment)
		}
	}

	if cfg.Sync.SyncInterval <= 0 || cfg.Sync.AlertInterval <= 0 {
		return nil, errors.New("sync and alert intervals must be positive")
	}

	return cfg, nil
}

func loadConfig(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FARMDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/farmdash")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.request_timeout", 10*time.Second)
	v.SetDefault("backend.probe_path", "/health")
	v.SetDefault("backend.probe_interval", 15*time.Second)

	// Geolocation defaults
	v.SetDefault("geo.base_url", "")
	v.SetDefault("geo.request_timeout", 5*time.Second)

	// RabbitMQ defaults (empty URL = messaging disabled)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.reconnect_delay", 5*time.Second)
	v.SetDefault("rabbitmq.max_retries", 5)
	v.SetDefault("rabbitmq.prefetch_count", 10)

	// Sync defaults
	v.SetDefault("sync.sync_interval", 30*time.Second)
	v.SetDefault("sync.alert_interval", 60*time.Second)
	v.SetDefault("sync.cache_ttl", 5*time.Minute)
	v.SetDefault("sync.queue_path", "")
	v.SetDefault("sync.expiry_warning_days", 30)
	v.SetDefault("sync.slow_moving_days", 180)
	v.SetDefault("sync.reorder_lead_time_days", 7)
	v.SetDefault("sync.consumption_window_days", 30)
}
