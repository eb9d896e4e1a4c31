package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxUploadSizeBytes() != 5_000_000 {
		t.Errorf("expected 5MB default, got %d", cfg.MaxUploadSizeBytes())
	}
	if cfg.StorageDriver != "local" {
		t.Errorf("expected local storage, got %s", cfg.StorageDriver)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"size", "MAX_UPLOAD_SIZE", "lots"},
		{"driver", "STORAGE_DRIVER", "ftp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestBrokersSplit(t *testing.T) {
	cfg := &Config{KafkaBrokers: "a:9092, b:9092,,"}
	got := cfg.Brokers()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("unexpected brokers %v", got)
	}
	if (&Config{}).Brokers() != nil {
		t.Error("expected no brokers for empty value")
	}
}

func TestLoadClientProfileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "piu.toml")
	content := "api_base_url = \"https://updater.example.com\"\nnative_search = true\ntimeout = \"5s\"\n"
	if err := os.WriteFile(profile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PIU_API_BASE_URL", "http://env.example.com")
	t.Setenv("PIU_APP_URL", "http://app.example.com")
	t.Setenv("PIU_CONFIG", profile)

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.APIBaseURL != "https://updater.example.com" {
		t.Errorf("profile did not override base url: %s", cfg.APIBaseURL)
	}
	if cfg.AppURL != "http://app.example.com" {
		t.Errorf("env value lost: %s", cfg.AppURL)
	}
	if !cfg.NativeSearch {
		t.Error("expected native search from profile")
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Timeout)
	}
}

func TestLoadClientMissingProfile(t *testing.T) {
	t.Setenv("PIU_CONFIG", filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for missing profile")
	}
}
