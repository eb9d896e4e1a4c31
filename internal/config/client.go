package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// ClientConfig configures the piu CLI and console.
type ClientConfig struct {
	APIBaseURL    string        `toml:"api_base_url"`
	AppURL        string        `toml:"app_url"`
	ShopifyAPIKey string        `toml:"shopify_api_key"`
	NativeSearch  bool          `toml:"native_search"`
	SessionFile   string        `toml:"session_file"`
	Timeout       time.Duration `toml:"-"`
	TimeoutString string        `toml:"timeout"`
	LogLevel      string        `toml:"log_level"`
}

// LoadClient reads PIU_* variables, then merges the TOML profile named by
// PIU_CONFIG over them. Profile keys that are absent keep the env value.
func LoadClient() (*ClientConfig, error) {
	godotenv.Load()

	cfg := &ClientConfig{
		APIBaseURL:    getEnv("PIU_API_BASE_URL", "http://localhost:8080"),
		AppURL:        getEnv("PIU_APP_URL", "http://localhost:8080"),
		ShopifyAPIKey: getEnv("PIU_SHOPIFY_API_KEY", ""),
		NativeSearch:  getEnvAsBool("PIU_NATIVE_SEARCH", false),
		SessionFile:   getEnv("PIU_SESSION_FILE", defaultSessionFile()),
		Timeout:       time.Duration(getEnvAsInt("PIU_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:      getEnv("PIU_LOG_LEVEL", "warn"),
	}

	if path := os.Getenv("PIU_CONFIG"); path != "" {
		if err := cfg.mergeProfile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *ClientConfig) mergeProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var profile map[string]any
	if err := toml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	// Decode again onto the populated struct so only present keys override.
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if _, ok := profile["timeout"]; ok {
		d, err := time.ParseDuration(c.TimeoutString)
		if err != nil {
			return fmt.Errorf("invalid timeout in profile: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "piu-session.db"
	}
	return filepath.Join(dir, "piu", "session.db")
}
