package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWSURLDerivation(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://tower.local", "wss://tower.local/graphql"},
		{"http://192.168.1.10:8080", "ws://192.168.1.10:8080/graphql"},
		{"https://tower.local/graphql", "wss://tower.local/graphql"},
		{"https://tower.local/", "wss://tower.local/graphql"},
	}
	for _, c := range cases {
		cfg := Config{APIURL: c.in}
		if got := cfg.WSURL(); got != c.want {
			t.Errorf("WSURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateMissing(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}
	cfg = Config{APIURL: "https://tower.local", APIKey: "k"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unraidlink.yaml")
	data := "api_url: https://tower.local\napi_key: secret\nmax_reconnect_attempts: 3\ndefault_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.APIURL != "https://tower.local" || cfg.APIKey != "secret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxReconnectAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.DefaultTimeout != 10*time.Second {
		t.Fatalf("expected 10s, got %v", cfg.DefaultTimeout)
	}
}

func TestEnvDurationBareSeconds(t *testing.T) {
	t.Setenv("UNRAID_TEST_DUR", "90")
	if d := envDuration("UNRAID_TEST_DUR", time.Second); d != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d)
	}
	t.Setenv("UNRAID_TEST_DUR", "1m30s")
	if d := envDuration("UNRAID_TEST_DUR", time.Second); d != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d)
	}
}

func TestSummaryMasksKey(t *testing.T) {
	cfg := Config{APIKey: "super-secret-api-key"}
	s := cfg.Summary()
	if s["api_key"] == cfg.APIKey {
		t.Fatal("API key leaked in summary")
	}
}

func TestTLSConfigModes(t *testing.T) {
	cfg := Config{TLSVerify: "true"}
	if tc, err := cfg.TLSConfig(); err != nil || tc != nil {
		t.Fatalf("expected nil config for verify=true, got %v %v", tc, err)
	}
	cfg.TLSVerify = "false"
	tc, err := cfg.TLSConfig()
	if err != nil || tc == nil || !tc.InsecureSkipVerify {
		t.Fatalf("expected insecure config, got %v %v", tc, err)
	}
	cfg.TLSVerify = filepath.Join(t.TempDir(), "missing.pem")
	if _, err := cfg.TLSConfig(); err == nil {
		t.Fatal("expected error for missing CA bundle")
	}
}
