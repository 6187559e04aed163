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
	Database    DatabaseConfig    `toml:"database"`
	Storage     StorageConfig     `toml:"storage"`
	Server      ServerConfig      `toml:"server"`
	HTTP        HTTPConfig        `toml:"http"`
	Transfer    TransferConfig    `toml:"transfer"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains provider-specific application credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Google  GoogleConfig  `toml:"google"`
	Apple   AppleConfig   `toml:"apple"`
}

// SpotifyConfig contains the Spotify application id used for the PKCE flow.
//
// No client secret is needed: the code exchange is bound to the verifier instead.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// GoogleConfig contains the Google OAuth client used for the implicit grant.
type GoogleConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// AppleConfig contains the MusicKit identity used to mint developer tokens.
type AppleConfig struct {
	TeamID         string `toml:"team_id"`
	KeyID          string `toml:"key_id"`
	PrivateKeyPath string `toml:"private_key_path"`
	Storefront     string `toml:"storefront"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StorageConfig selects the backend for persisted session keys.
type StorageConfig struct {
	Driver    string `toml:"driver"` // sqlite or redis
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
}

// ServerConfig contains the local redirect server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port pair the redirect server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HTTPConfig bounds outbound provider requests.
type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout"`
}

// TransferConfig holds pacing, batching and matching parameters for the transfer pipeline.
type TransferConfig struct {
	PageDelay      time.Duration `toml:"page_delay"`
	SearchDelay    time.Duration `toml:"search_delay"`
	BatchDelay     time.Duration `toml:"batch_delay"`
	BatchSize      int           `toml:"batch_size"`
	SettleDelay    time.Duration `toml:"settle_delay"`
	SearchLimit    int           `toml:"search_limit"`
	MatchThreshold float64       `toml:"match_threshold"`
	MatchAlgorithm string        `toml:"match_algorithm"`
	HealthInterval time.Duration `toml:"health_interval"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Transfer.BatchSize <= 0:
		return fmt.Errorf("%w: transfer.batch_size must be positive", ErrInvalidConfig)
	case c.Transfer.SearchLimit <= 0:
		return fmt.Errorf("%w: transfer.search_limit must be positive", ErrInvalidConfig)
	case c.Transfer.MatchThreshold < 0 || c.Transfer.MatchThreshold > 1:
		return fmt.Errorf("%w: transfer.match_threshold must be within [0, 1]", ErrInvalidConfig)
	case c.Storage.Driver != "sqlite" && c.Storage.Driver != "redis":
		return fmt.Errorf("%w: storage.driver must be sqlite or redis, got %q", ErrInvalidConfig, c.Storage.Driver)
	}
	return nil
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
