// Package config loads pipeline configuration from YAML files and
// WEATHER_ETL_ environment variables, with environment taking precedence.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
	"github.com/couchcryptid/weather-data-etl/internal/quality"
)

// Config is the full runtime configuration for the ETL service.
type Config struct {
	Source        SourceConfig        `mapstructure:"source"`
	Locations     []domain.Location   `mapstructure:"locations"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Quality       QualityConfig       `mapstructure:"quality"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Warehouse     WarehouseConfig     `mapstructure:"warehouse"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SourceConfig describes the upstream forecast API and the fetch policy.
type SourceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Parameters []string      `mapstructure:"parameters"`
	Version    string        `mapstructure:"version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retry      RetryConfig   `mapstructure:"retry"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// RetryConfig tunes the exponential backoff applied to failed fetches.
type RetryConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
	Multiplier          float64       `mapstructure:"multiplier"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime      time.Duration `mapstructure:"max_elapsed_time"`
}

// BreakerConfig tunes the circuit breaker guarding the upstream API.
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// PipelineConfig controls batch execution.
type PipelineConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Interval    time.Duration `mapstructure:"interval"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
}

// QualityConfig holds per-metric validation bounds.
type QualityConfig struct {
	Ranges map[string]quality.Range `mapstructure:"ranges"`
}

// StorageConfig points at the layered file store.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// WarehouseConfig selects and configures the analytical database.
// Driver is one of "sqlite", "postgres", or "none".
type WarehouseConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AlertsConfig configures run-outcome notification channels. A channel is
// enabled when its address fields are set.
type AlertsConfig struct {
	Webhook WebhookConfig    `mapstructure:"webhook"`
	Kafka   KafkaAlertConfig `mapstructure:"kafka"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaAlertConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ServerConfig configures the HTTP status server used in daemon mode.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ObservabilityConfig controls logging and metrics publication.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	PushJob        string `mapstructure:"push_job"`
}

// Load reads configuration from the given YAML file and the environment.
// When path is empty, WEATHER_ETL_CONFIG names the file; failing that the
// search covers ./config.yaml and ./config/config.yaml, falling back to
// defaults if neither exists. Environment variables use the WEATHER_ETL_
// prefix with underscores for nesting, for example WEATHER_ETL_STORAGE_ROOT
// or WEATHER_ETL_SOURCE_TIMEOUT.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	if path == "" {
		path = os.Getenv("WEATHER_ETL_CONFIG")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WEATHER_ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("source.parameters", []string{
		"temperature_2m",
		"relative_humidity_2m",
		"apparent_temperature",
		"precipitation",
		"weather_code",
		"wind_speed_10m",
	})
	v.SetDefault("source.version", "open-meteo-v1")
	v.SetDefault("source.timeout", 10*time.Second)
	v.SetDefault("source.retry.max_attempts", 3)
	v.SetDefault("source.retry.initial_interval", time.Second)
	v.SetDefault("source.retry.randomization_factor", 0.5)
	v.SetDefault("source.retry.multiplier", 2.0)
	v.SetDefault("source.retry.max_interval", 30*time.Second)
	v.SetDefault("source.retry.max_elapsed_time", 2*time.Minute)
	v.SetDefault("source.breaker.max_requests", 1)
	v.SetDefault("source.breaker.interval", time.Duration(0))
	v.SetDefault("source.breaker.timeout", 30*time.Second)
	v.SetDefault("source.breaker.failure_threshold", 5)

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.interval", 15*time.Minute)
	v.SetDefault("pipeline.run_timeout", 5*time.Minute)

	v.SetDefault("quality.ranges.temperature_celsius.min", -90.0)
	v.SetDefault("quality.ranges.temperature_celsius.max", 60.0)
	v.SetDefault("quality.ranges.relative_humidity.min", 0.0)
	v.SetDefault("quality.ranges.relative_humidity.max", 100.0)
	v.SetDefault("quality.ranges.precipitation_mm.min", 0.0)
	v.SetDefault("quality.ranges.wind_speed_kmh.min", 0.0)

	v.SetDefault("storage.root", "./data")

	v.SetDefault("warehouse.driver", "sqlite")
	v.SetDefault("warehouse.sqlite.path", "./data/warehouse/analytics.db")
	v.SetDefault("warehouse.postgres.dsn", "")

	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.timeout", 10*time.Second)
	v.SetDefault("alerts.kafka.brokers", []string{})
	v.SetDefault("alerts.kafka.topic", "weather-etl-alerts")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.pushgateway_url", "")
	v.SetDefault("observability.push_job", "weather-etl")
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if !slices.Contains(c.Source.Parameters, "weather_code") {
		return fmt.Errorf("source.parameters must include weather_code")
	}
	if c.Source.Retry.MaxAttempts < 1 {
		return fmt.Errorf("source.retry.max_attempts must be at least 1")
	}

	if len(c.Locations) == 0 {
		return fmt.Errorf("at least one location is required")
	}
	seen := make(map[string]struct{}, len(c.Locations))
	for i, loc := range c.Locations {
		if loc.ID == "" {
			return fmt.Errorf("locations[%d]: id is required", i)
		}
		if loc.City == "" {
			return fmt.Errorf("locations[%d] (%s): city is required", i, loc.ID)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return fmt.Errorf("locations[%d] (%s): latitude %v out of range", i, loc.ID, loc.Latitude)
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return fmt.Errorf("locations[%d] (%s): longitude %v out of range", i, loc.ID, loc.Longitude)
		}
		if _, dup := seen[loc.ID]; dup {
			return fmt.Errorf("duplicate location id %q", loc.ID)
		}
		seen[loc.ID] = struct{}{}
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.Interval <= 0 {
		return fmt.Errorf("pipeline.interval must be positive")
	}

	for field, r := range c.Quality.Ranges {
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("quality.ranges.%s: min %v exceeds max %v", field, *r.Min, *r.Max)
		}
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}

	switch c.Warehouse.Driver {
	case "sqlite":
		if c.Warehouse.SQLite.Path == "" {
			return fmt.Errorf("warehouse.sqlite.path is required when driver is sqlite")
		}
	case "postgres":
		if c.Warehouse.Postgres.DSN == "" {
			return fmt.Errorf("warehouse.postgres.dsn is required when driver is postgres")
		}
	case "none", "":
	default:
		return fmt.Errorf("unknown warehouse driver %q", c.Warehouse.Driver)
	}

	if len(c.Alerts.Kafka.Brokers) > 0 && c.Alerts.Kafka.Topic == "" {
		return fmt.Errorf("alerts.kafka.topic is required when brokers are set")
	}

	return nil
}
