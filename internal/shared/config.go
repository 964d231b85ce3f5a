package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Library     LibraryConfig     `toml:"library"`
	Database    DatabaseConfig    `toml:"database"`
	Remote      RemoteConfig      `toml:"remote"`
}

// CredentialsConfig contains the cloud music account credentials.
type CredentialsConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	DeviceID string `toml:"device_id"`
}

// LibraryConfig contains cache and refresh settings.
type LibraryConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	StreamQuality   string   `toml:"stream_quality"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig contains remote service endpoints and limits.
type RemoteConfig struct {
	BaseURL   string   `toml:"base_url"`
	AuthURL   string   `toml:"auth_url"`
	Timeout   duration `toml:"timeout"`
	RateLimit int      `toml:"rate_limit"`
}

// duration wraps [time.Duration] for TOML string decoding ("10m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = parsed
	return nil
}

// RefreshInterval returns the configured refresh interval, defaulting to ten minutes.
func (c *Config) RefreshInterval() time.Duration {
	if c.Library.RefreshInterval.Duration <= 0 {
		return 10 * time.Minute
	}
	return c.Library.RefreshInterval.Duration
}

// RemoteTimeout returns the configured remote call timeout, defaulting to thirty seconds.
func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.Timeout.Duration <= 0 {
		return 30 * time.Second
	}
	return c.Remote.Timeout.Duration
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
