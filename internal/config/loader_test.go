package config

import (
	"os"
	"testing"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`
listen: ":8443"
prefix: "/kubernetes"
upstream:
  url: "https://cluster.example.com"
cors:
  allowed_origin: "https://app.example.com"
environment: development
bearer_token: "file-token"
logging:
  level: debug
`)
	cfg, err := NewLoader().Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != ":8443" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Upstream.URL != "https://cluster.example.com" {
		t.Errorf("upstream = %q", cfg.Upstream.URL)
	}
	if cfg.CORS.AllowedOrigin != "https://app.example.com" {
		t.Errorf("allowed origin = %q", cfg.CORS.AllowedOrigin)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestParseExpandsEnvVars(t *testing.T) {
	os.Setenv("TEST_KUBEGATE_SECRET", "expanded-secret")
	defer os.Unsetenv("TEST_KUBEGATE_SECRET")

	cfg, err := NewLoader().Parse([]byte(`bearer_token: "${TEST_KUBEGATE_SECRET}"`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.BearerToken != "expanded-secret" {
		t.Errorf("token = %q", cfg.BearerToken)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	os.Setenv(EnvUpstreamURL, "https://override.example.com")
	os.Setenv(EnvMode, "development")
	defer os.Unsetenv(EnvUpstreamURL)
	defer os.Unsetenv(EnvMode)

	cfg, err := NewLoader().Parse([]byte(`
upstream:
  url: "https://from-file.example.com"
environment: production
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Upstream.URL != "https://override.example.com" {
		t.Errorf("upstream = %q, env var must win", cfg.Upstream.URL)
	}
	if cfg.Environment != "development" {
		t.Errorf("environment = %q", cfg.Environment)
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := NewLoader().LoadFromEnv()
	if cfg.Upstream.URL == "" {
		t.Error("upstream default missing")
	}
	if cfg.Prefix != "/kubernetes" {
		t.Errorf("prefix = %q", cfg.Prefix)
	}
}
