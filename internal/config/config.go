package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// Mode selects how much failure detail leaks to clients.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Config is the on-disk gateway configuration.
type Config struct {
	Listen      string         `yaml:"listen"`
	Admin       string         `yaml:"admin"`
	Prefix      string         `yaml:"prefix"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Dashboard   string         `yaml:"dashboard_origin"`
	CORS        CORSConfig     `yaml:"cors"`
	Environment string         `yaml:"environment"`
	BearerToken string         `yaml:"bearer_token"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// UpstreamConfig describes the cluster API endpoint.
type UpstreamConfig struct {
	URL    string `yaml:"url"`
	CAFile string `yaml:"ca_file"`
}

// CORSConfig holds the raw allowed-origin setting. Interpretation
// (wildcard, exact list, subdomain wildcard) happens downstream.
type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

// LoggingConfig configures log output and rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		Admin:       ":9090",
		Prefix:      "/kubernetes",
		Upstream:    UpstreamConfig{URL: "https://kubernetes-api.example.com"},
		CORS:        CORSConfig{AllowedOrigin: "*"},
		Environment: string(ModeProduction),
		Logging:     LoggingConfig{Level: "info"},
	}
}

// ValidationError describes a rejected configuration value. The reason
// is operator-facing; clients only see it in development mode.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateUpstreamURL enforces the upstream endpoint rules: absolute
// https URL, public host. Loopback and private-range hosts are refused
// so a misconfigured gateway cannot be pointed at itself or at
// internal services.
func ValidateUpstreamURL(u *url.URL) *ValidationError {
	if u == nil || !u.IsAbs() {
		return &ValidationError{Field: "upstream.url", Reason: "must be an absolute URL"}
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "upstream.url", Reason: "scheme must be https"}
	}
	host := u.Hostname()
	if host == "" {
		return &ValidationError{Field: "upstream.url", Reason: "host is required"}
	}
	if host == "localhost" || host == "127.0.0.1" {
		return &ValidationError{Field: "upstream.url", Reason: "loopback host not allowed"}
	}
	if strings.HasPrefix(host, "192.168.") || strings.HasPrefix(host, "10.") {
		return &ValidationError{Field: "upstream.url", Reason: "private-range host not allowed"}
	}
	return nil
}

// Resolved is the per-request view of the configuration: URLs parsed,
// mode normalized, validation outcome recorded. A snapshot is immutable
// once built; reloads swap in a fresh one.
type Resolved struct {
	Listen          string
	Admin           string
	Prefix          string
	UpstreamURL     *url.URL
	CAFile          string
	DashboardOrigin *url.URL
	AllowedOrigin   string
	Mode            Mode
	BearerToken     string
	Logging         LoggingConfig

	// Err is non-nil when the configuration failed validation. Requests
	// served against such a snapshot are answered with a configuration
	// error; the process keeps running so a corrected reload can recover.
	Err *ValidationError
}

// Development reports whether failure details may be exposed to clients.
func (r *Resolved) Development() bool {
	return r.Mode == ModeDevelopment
}

// Resolve parses and validates the configuration into a snapshot.
func (c *Config) Resolve() *Resolved {
	r := &Resolved{
		Listen:        c.Listen,
		Admin:         c.Admin,
		Prefix:        c.Prefix,
		CAFile:        c.Upstream.CAFile,
		AllowedOrigin: c.CORS.AllowedOrigin,
		BearerToken:   c.BearerToken,
		Logging:       c.Logging,
		Mode:          ModeProduction,
	}
	if strings.EqualFold(c.Environment, string(ModeDevelopment)) {
		r.Mode = ModeDevelopment
	}
	if r.Prefix == "" {
		r.Prefix = "/kubernetes"
	}

	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		r.Err = &ValidationError{Field: "upstream.url", Reason: "must be a valid URL"}
		return r
	}
	if verr := ValidateUpstreamURL(u); verr != nil {
		r.Err = verr
		return r
	}
	r.UpstreamURL = u

	if c.Dashboard != "" {
		d, err := url.Parse(c.Dashboard)
		if err != nil || !d.IsAbs() {
			r.Err = &ValidationError{Field: "dashboard_origin", Reason: "must be an absolute URL"}
			return r
		}
		r.DashboardOrigin = d
	}
	return r
}

// Store holds the current resolved snapshot. Swapped atomically on
// reload; every request reads exactly one snapshot.
type Store struct {
	current atomic.Pointer[Resolved]
}

// NewStore creates a store seeded with an initial snapshot.
func NewStore(r *Resolved) *Store {
	s := &Store{}
	s.current.Store(r)
	return s
}

// Snapshot returns the current resolved configuration.
func (s *Store) Snapshot() *Resolved {
	return s.current.Load()
}

// Swap replaces the current snapshot.
func (s *Store) Swap(r *Resolved) {
	s.current.Store(r)
}
