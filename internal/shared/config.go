package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Client   ClientConfig   `toml:"client"`
	Cache    CacheConfig    `toml:"cache"`
	Bridge   BridgeConfig   `toml:"bridge"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// Duration is a [time.Duration] written as a string ("10s", "250ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(b))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ClientConfig controls collaborator calls made by catalogs, queues and renderers.
type ClientConfig struct {
	CallTimeout    Duration `toml:"call_timeout"`
	SearchDebounce Duration `toml:"search_debounce"`
	PageSize       int      `toml:"page_size"`
}

// CacheConfig controls the catalog page cache.
type CacheConfig struct {
	Enabled  bool     `toml:"enabled"`
	SizeMB   int      `toml:"size_mb"`
	TTL      Duration `toml:"ttl"`
	Compress bool     `toml:"compress"`
}

// BridgeConfig contains the renderer bridge endpoint and its client credentials.
type BridgeConfig struct {
	URL          string   `toml:"url"`
	RateLimit    float64  `toml:"rate_limit"`
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// HasCredentials reports whether the bridge should authenticate with client credentials.
func (b BridgeConfig) HasCredentials() bool {
	return b.TokenURL != "" && b.ClientID != ""
}

// MQTTConfig contains the broker used for pushed renderer updates.
type MQTTConfig struct {
	Broker    string `toml:"broker"`
	TopicBase string `toml:"topic_base"`
	ClientID  string `toml:"client_id"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
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

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.Client.CallTimeout.Duration <= 0 {
		return fmt.Errorf("%w: client.call_timeout must be positive", ErrInvalidConfig)
	}
	if c.Client.PageSize <= 0 {
		return fmt.Errorf("%w: client.page_size must be positive", ErrInvalidConfig)
	}
	if c.Cache.Enabled && c.Cache.SizeMB <= 0 {
		return fmt.Errorf("%w: cache.size_mb must be positive when the cache is enabled", ErrInvalidConfig)
	}
	if c.Bridge.RateLimit < 0 {
		return fmt.Errorf("%w: bridge.rate_limit must not be negative", ErrInvalidConfig)
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
