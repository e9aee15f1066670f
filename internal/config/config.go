package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server identity configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ScannerConfig represents scan session configuration
type ScannerConfig struct {
	// Device is the HCI device name handed to the BLE adapter
	// ("default" for the platform default controller). The value
	// "fake" selects the in-memory adapter, for running without
	// hardware.
	Device string `yaml:"device"`

	DebounceCooldownSeconds    int  `yaml:"debounce_cooldown_seconds"`
	ScanRestartIntervalSeconds int  `yaml:"scan_restart_interval_seconds"`
	RelaxedFallbackDecoding    bool `yaml:"relaxed_fallback_decoding"`

	// AutoStart launches the scan session on boot; otherwise the
	// operator starts it through the API.
	AutoStart bool `yaml:"auto_start"`
}

// APIConfig represents REST API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DebounceCooldown returns the configured cooldown as a duration.
func (s ScannerConfig) DebounceCooldown() time.Duration {
	return time.Duration(s.DebounceCooldownSeconds) * time.Second
}

// ScanRestartInterval returns the configured restart period.
func (s ScannerConfig) ScanRestartInterval() time.Duration {
	return time.Duration(s.ScanRestartIntervalSeconds) * time.Second
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if device := os.Getenv("BLE_DEVICE"); device != "" {
		c.Scanner.Device = device
	}
}

// setDefaults fills in the recognized option defaults
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "beacon-checkin-server"
	}

	if c.Scanner.Device == "" {
		c.Scanner.Device = "default"
	}
	if c.Scanner.DebounceCooldownSeconds == 0 {
		c.Scanner.DebounceCooldownSeconds = 30
	}
	if c.Scanner.ScanRestartIntervalSeconds == 0 {
		c.Scanner.ScanRestartIntervalSeconds = 10
	}

	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate rejects configurations the scanner cannot run with
func (c *Config) validate() error {
	if c.Scanner.DebounceCooldownSeconds < 0 {
		return fmt.Errorf("scanner.debounce_cooldown_seconds must not be negative")
	}

	if c.Scanner.ScanRestartIntervalSeconds < 1 {
		return fmt.Errorf("scanner.scan_restart_interval_seconds must be at least 1")
	}

	return nil
}
