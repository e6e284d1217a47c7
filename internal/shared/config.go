package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// Database drivers understood by [DatabaseConfig].
const (
	DriverMemory       = "memory"
	DriverSQLite       = "sqlite"
	DriverGormSQLite   = "gorm-sqlite"
	DriverGormPostgres = "gorm-postgres"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Database DatabaseConfig `toml:"database"`
	Events   EventsConfig   `toml:"events"`
	Limits   LimitsConfig   `toml:"limits"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `toml:"level" env:"CRUX_LOG_LEVEL"`
}

// DatabaseConfig selects the storage adapter and its connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"CRUX_DATABASE_DRIVER" validate:"oneof=memory sqlite gorm-sqlite gorm-postgres"`
	Path         string `toml:"path" env:"CRUX_DATABASE_PATH"`
	DSN          string `toml:"dsn" env:"CRUX_DATABASE_DSN"`
	MaxOpenConns int    `toml:"max_open_conns" env:"CRUX_DATABASE_MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"CRUX_DATABASE_MAX_IDLE_CONNS" validate:"gte=0"`
}

// EventsConfig configures the lifecycle event listeners.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers" env:"CRUX_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `toml:"kafka_topic" env:"CRUX_KAFKA_TOPIC"`
	CacheMaxCost int64    `toml:"cache_max_cost" env:"CRUX_CACHE_MAX_COST" validate:"gte=0"`
	Metrics      bool     `toml:"metrics" env:"CRUX_METRICS"`
}

// LimitsConfig throttles operations entering the engine. A zero rate disables throttling.
// ReadOnly rejects every write before it reaches storage.
type LimitsConfig struct {
	Rate     float64 `toml:"rate" env:"CRUX_RATE" validate:"gte=0"`
	Burst    int     `toml:"burst" env:"CRUX_BURST" validate:"gte=0"`
	ReadOnly bool    `toml:"read_only" env:"CRUX_READ_ONLY"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first problem with the configuration, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverGormSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database path is required for driver %s", ErrInvalidConfig, c.Database.Driver)
		}
	case DriverGormPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database dsn is required for driver %s", ErrInvalidConfig, c.Database.Driver)
		}
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("%w: events kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	}
	if c.Limits.Rate > 0 && c.Limits.Burst == 0 {
		return fmt.Errorf("%w: limits burst must be positive when rate is set", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a TOML configuration file from the specified path, starting from the
// defaults, then applies CRUX_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config fields from CRUX_* environment variables.
// Unset variables leave the current values alone.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WriteConfig encodes config to w as TOML.
func WriteConfig(w io.Writer, config *Config) error {
	if err := toml.NewEncoder(w).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := WriteConfig(&buf, config); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseLevel maps a config level name to a [log.Level]. An empty name is info.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
