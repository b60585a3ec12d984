package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Environment variables overriding file values, applied after YAML.
const (
	EnvUpstreamURL     = "KUBEGATE_UPSTREAM_URL"
	EnvAllowedOrigin   = "KUBEGATE_ALLOWED_ORIGIN"
	EnvMode            = "KUBEGATE_ENV"
	EnvBearerToken     = "KUBEGATE_TOKEN"
	EnvDashboardOrigin = "KUBEGATE_DASHBOARD_ORIGIN"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes. Environment overrides
// apply on top of file values.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromEnv builds the configuration without a file: defaults plus
// environment overrides.
func (l *Loader) LoadFromEnv() *Config {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvUpstreamURL); v != "" {
		cfg.Upstream.URL = v
	}
	if v := os.Getenv(EnvAllowedOrigin); v != "" {
		cfg.CORS.AllowedOrigin = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv(EnvBearerToken); v != "" {
		cfg.BearerToken = v
	}
	if v := os.Getenv(EnvDashboardOrigin); v != "" {
		cfg.Dashboard = v
	}
}
