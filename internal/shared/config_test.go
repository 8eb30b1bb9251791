package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.BaseURL != "http://127.0.0.1:4000/api" {
			t.Errorf("expected default base url, got %s", config.API.BaseURL)
		}
		if config.Database.Path != "./vidx.db" {
			t.Errorf("expected database path ./vidx.db, got %s", config.Database.Path)
		}
		if config.Cache.Backend != "memory" {
			t.Errorf("expected memory cache backend, got %s", config.Cache.Backend)
		}
		if got := config.Search.Debounce(); got != 300*time.Millisecond {
			t.Errorf("expected 300ms debounce, got %v", got)
		}
		if got := config.Upload.MaxSize(); got != 2048<<20 {
			t.Errorf("expected 2 GiB max upload size, got %d", got)
		}
		if len(config.Upload.AllowedTypes) == 0 {
			t.Error("expected default allowed upload types")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[api]
base_url = "https://videos.example.com/api"
timeout_seconds = 5

[cache]
backend = "redis"
list_ttl = "30s"

[log]
level = "debug"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://videos.example.com/api" {
			t.Errorf("unexpected base url %s", config.API.BaseURL)
		}
		if config.API.Timeout() != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", config.API.Timeout())
		}
		if config.API.AuthTimeout() != 10*time.Second {
			t.Errorf("expected auth timeout to keep its default, got %v", config.API.AuthTimeout())
		}
		if config.Cache.Backend != "redis" {
			t.Errorf("expected redis backend, got %s", config.Cache.Backend)
		}
		if got := ParseTTL(config.Cache.ListTTL, time.Minute); got != 30*time.Second {
			t.Errorf("expected list ttl 30s, got %v", got)
		}
		if config.Log.ParseLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", config.Log.ParseLevel())
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[api\nbase_url = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ParseTTL", func(t *testing.T) {
		tc := []struct {
			name  string
			value string
			want  time.Duration
		}{
			{name: "Empty Falls Back", value: "", want: time.Minute},
			{name: "Invalid Falls Back", value: "soon", want: time.Minute},
			{name: "Negative Falls Back", value: "-5s", want: time.Minute},
			{name: "Valid", value: "90s", want: 90 * time.Second},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := ParseTTL(tt.value, time.Minute); got != tt.want {
					t.Errorf("ParseTTL(%q) = %v, want %v", tt.value, got, tt.want)
				}
			})
		}
	})
}
