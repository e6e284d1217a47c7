package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected driver sqlite, got %s", config.Database.Driver)
		}

		if config.Database.Path != "./crux.db" {
			t.Errorf("expected database path ./crux.db, got %s", config.Database.Path)
		}

		if config.Events.KafkaTopic != "crux.tracks" {
			t.Errorf("expected kafka topic crux.tracks, got %s", config.Events.KafkaTopic)
		}

		if len(config.Events.KafkaBrokers) != 0 {
			t.Errorf("expected no kafka brokers by default, got %v", config.Events.KafkaBrokers)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[log]
level = "debug"

[database]
driver = "gorm-postgres"
dsn = "host=localhost user=crux dbname=crux"
max_open_conns = 20

[events]
kafka_brokers = ["localhost:9092"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverGormPostgres {
			t.Errorf("expected driver gorm-postgres, got %s", config.Database.Driver)
		}

		if config.Database.MaxOpenConns != 20 {
			t.Errorf("expected max_open_conns 20, got %d", config.Database.MaxOpenConns)
		}

		if config.Database.MaxIdleConns != 5 {
			t.Errorf("expected max_idle_conns to keep default 5, got %d", config.Database.MaxIdleConns)
		}

		if config.Events.KafkaTopic != "crux.tracks" {
			t.Errorf("expected default kafka topic, got %s", config.Events.KafkaTopic)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("config should be valid: %v", err)
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("CRUX_DATABASE_DRIVER", "memory")
		t.Setenv("CRUX_KAFKA_BROKERS", "a:9092,b:9092")
		t.Setenv("CRUX_RATE", "2.5")

		config := DefaultConfig()
		if err := ApplyEnv(config); err != nil {
			t.Fatalf("failed to apply env: %v", err)
		}

		if config.Database.Driver != DriverMemory {
			t.Errorf("expected driver memory, got %s", config.Database.Driver)
		}
		if len(config.Events.KafkaBrokers) != 2 || config.Events.KafkaBrokers[1] != "b:9092" {
			t.Errorf("expected two brokers, got %v", config.Events.KafkaBrokers)
		}
		if config.Limits.Rate != 2.5 {
			t.Errorf("expected rate 2.5, got %v", config.Limits.Rate)
		}
		if config.Database.Path != "./crux.db" {
			t.Errorf("unset variables should keep file values, got path %s", config.Database.Path)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		config := DefaultConfig()
		config.Database.Driver = DriverMemory
		config.Limits.Rate = 5
		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Database.Driver != DriverMemory || loaded.Limits.Rate != 5 {
			t.Errorf("saved values not read back: %+v", loaded)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mongo" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = DriverGormPostgres }},
		{name: "negative pool", mutate: func(c *Config) { c.Database.MaxOpenConns = -1 }},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "brokers without topic", mutate: func(c *Config) {
			c.Events.KafkaBrokers = []string{"localhost:9092"}
			c.Events.KafkaTopic = ""
		}},
		{name: "rate without burst", mutate: func(c *Config) { c.Limits.Rate = 1; c.Limits.Burst = 0 }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	t.Run("memory needs no path", func(t *testing.T) {
		config := DefaultConfig()
		config.Database.Driver = DriverMemory
		config.Database.Path = ""
		if err := config.Validate(); err != nil {
			t.Errorf("memory driver should not need a path: %v", err)
		}
	})
}
