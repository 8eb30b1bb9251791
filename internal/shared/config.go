package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	Search   SearchConfig   `toml:"search"`
	Upload   UploadConfig   `toml:"upload"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig contains REST backend connection settings.
type APIConfig struct {
	BaseURL          string  `toml:"base_url"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	AuthTimeoutSecs  int     `toml:"auth_timeout_seconds"`
	UploadTimeoutMin int     `toml:"upload_timeout_minutes"`
	Retries          int     `toml:"retries"`
	RetryDelayMS     int     `toml:"retry_delay_ms"`
	RateLimit        float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst        int     `toml:"rate_burst"`
}

// CacheConfig selects the response cache backend and overrides TTL tiers.
type CacheConfig struct {
	Backend       string `toml:"backend"` // memory or redis
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	DetailTTL     string `toml:"detail_ttl"`
	ListTTL       string `toml:"list_ttl"`
	SearchTTL     string `toml:"search_ttl"`
	StaticTTL     string `toml:"static_ttl"`
	VolatileTTL   string `toml:"volatile_ttl"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SearchConfig controls the debounced search behavior.
type SearchConfig struct {
	DebounceMS   int `toml:"debounce_ms"`
	MinLength    int `toml:"min_length"`
	HistoryLimit int `toml:"history_limit"`
	RecentLimit  int `toml:"recent_limit"`
}

// UploadConfig contains client-side upload validation rules.
type UploadConfig struct {
	MaxSizeMB    int64    `toml:"max_size_mb"`
	AllowedTypes []string `toml:"allowed_types"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
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

// Timeout returns the default request timeout.
func (c APIConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSeconds, 30)
}

// AuthTimeout returns the timeout used for auth endpoints.
func (c APIConfig) AuthTimeout() time.Duration {
	return secondsOr(c.AuthTimeoutSecs, 10)
}

// UploadTimeout returns the extended timeout used for uploads.
func (c APIConfig) UploadTimeout() time.Duration {
	if c.UploadTimeoutMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.UploadTimeoutMin) * time.Minute
}

// RetryDelay returns the base delay of the linear retry backoff.
func (c APIConfig) RetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// Debounce returns the search debounce delay.
func (c SearchConfig) Debounce() time.Duration {
	if c.DebounceMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// MaxSize returns the maximum upload size in bytes.
func (c UploadConfig) MaxSize() int64 {
	if c.MaxSizeMB <= 0 {
		return 2048 << 20
	}
	return c.MaxSizeMB << 20
}

// ParseTTL parses a TTL override, returning fallback when empty or invalid.
func ParseTTL(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ParseLevel parses the configured log level, defaulting to info.
func (c LogConfig) ParseLevel() log.Level {
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
