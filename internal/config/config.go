package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Bidding   BiddingConfig   `yaml:"bidding"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP/websocket server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// WriteTimeout bounds a single websocket write to a client.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// OutboxSize is the per-connection buffered send queue. Connections
	// that fall this far behind are dropped rather than block fan-out.
	OutboxSize int `yaml:"outbox_size"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "postgres" or "memory"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// BiddingConfig holds auction engine settings.
type BiddingConfig struct {
	// MinIncrement is the amount a new bid must exceed the current
	// highest bid by. Parsed as a fixed-point decimal.
	MinIncrement string `yaml:"min_increment"`
	// SweepInterval is how often the expirer checks for auctions past
	// their end time.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Increment returns the parsed minimum bid increment.
func (b BiddingConfig) Increment() decimal.Decimal {
	d, err := decimal.NewFromString(b.MinIncrement)
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return d
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration defaults applied before the YAML file
// is merged in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			WriteTimeout:    5 * time.Second,
			OutboxSize:      16,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "postgres",
		},
		Bidding: BiddingConfig{
			MinIncrement:  "10",
			SweepInterval: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "bidhub",
			ServiceVersion: "0.1.0",
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported store driver %q: must be \"postgres\" or \"memory\"", c.Database.Driver)
	}
	if _, err := decimal.NewFromString(c.Bidding.MinIncrement); err != nil {
		return fmt.Errorf("invalid bidding.min_increment %q: %w", c.Bidding.MinIncrement, err)
	}
	if c.Bidding.SweepInterval <= 0 {
		return fmt.Errorf("bidding.sweep_interval must be positive, got %s", c.Bidding.SweepInterval)
	}
	if c.Server.OutboxSize <= 0 {
		return fmt.Errorf("server.outbox_size must be positive, got %d", c.Server.OutboxSize)
	}
	return nil
}
