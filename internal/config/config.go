package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gaspardpetit/unraidlink/core/secret"
)

// Config holds the connector configuration. Values are sourced from the
// environment first, then flags, then an optional YAML file.
type Config struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`

	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	ExtendedTimeout time.Duration `yaml:"extended_timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// TLSVerify is "true", "false", or a path to a CA bundle.
	TLSVerify string `yaml:"tls_verify"`

	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	MaxBackoff           time.Duration `yaml:"max_backoff"`
	GraceClose           time.Duration `yaml:"grace_close"`

	StatusAddr  string `yaml:"status_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	AutostartLogPath string `yaml:"autostart_log_path"`
	NoopRulesFile    string `yaml:"noop_rules_file"`

	ConfigFile string `yaml:"-"`
}

// GetEnv returns the value of the environment variable or def when unset.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BindFlags populates the struct with defaults from environment variables and
// binds command line flags so main can call flag.Parse().
func (c *Config) BindFlags() {
	c.ConfigFile = GetEnv("UNRAID_CONFIG_FILE", "")
	c.LogLevel = GetEnv("UNRAID_LOG_LEVEL", "info")
	c.LogFile = GetEnv("UNRAID_LOG_FILE", "")

	c.APIURL = GetEnv("UNRAID_API_URL", "")
	c.APIKey = GetEnv("UNRAID_API_KEY", "")
	c.TLSVerify = GetEnv("UNRAID_VERIFY_SSL", "true")

	c.DefaultTimeout = envDuration("UNRAID_DEFAULT_TIMEOUT", 30*time.Second)
	c.ExtendedTimeout = envDuration("UNRAID_EXTENDED_TIMEOUT", 90*time.Second)
	c.ConnectTimeout = envDuration("UNRAID_CONNECT_TIMEOUT", 10*time.Second)
	c.MaxBackoff = envDuration("UNRAID_MAX_BACKOFF", 5*time.Minute)
	c.GraceClose = envDuration("UNRAID_GRACE_CLOSE", 5*time.Second)

	if v, err := strconv.Atoi(GetEnv("UNRAID_MAX_RECONNECT_ATTEMPTS", "10")); err == nil {
		c.MaxReconnectAttempts = v
	} else {
		c.MaxReconnectAttempts = 10
	}

	c.StatusAddr = GetEnv("UNRAID_STATUS_ADDR", "")
	mp := GetEnv("UNRAID_METRICS_PORT", "")
	if mp != "" && !strings.Contains(mp, ":") {
		mp = ":" + mp
	}
	c.MetricsAddr = mp
	c.AutostartLogPath = GetEnv("UNRAID_AUTOSTART_LOG_PATH", "")
	c.NoopRulesFile = GetEnv("UNRAID_NOOP_RULES_FILE", "")

	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "config file path")
	flag.StringVar(&c.APIURL, "api-url", c.APIURL, "Unraid GraphQL endpoint (e.g. https://tower.local/graphql)")
	flag.StringVar(&c.APIKey, "api-key", c.APIKey, "Unraid API key")
	flag.StringVar(&c.TLSVerify, "tls-verify", c.TLSVerify, "TLS verification: true, false, or path to a CA bundle")
	flag.DurationVar(&c.DefaultTimeout, "default-timeout", c.DefaultTimeout, "timeout for most operations")
	flag.DurationVar(&c.ExtendedTimeout, "extended-timeout", c.ExtendedTimeout, "timeout for slow operations (disk/array)")
	flag.DurationVar(&c.ConnectTimeout, "connect-timeout", c.ConnectTimeout, "subscription connect/handshake timeout")
	flag.IntVar(&c.MaxReconnectAttempts, "max-reconnect-attempts", c.MaxReconnectAttempts, "reconnect attempts before a subscription channel fails")
	flag.DurationVar(&c.MaxBackoff, "max-backoff", c.MaxBackoff, "upper bound for reconnect backoff")
	flag.DurationVar(&c.GraceClose, "grace-close", c.GraceClose, "idle grace period before closing a channel with no consumers")
	flag.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "local status HTTP listen address (enables /status)")
	flag.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port (disabled when empty)")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.StringVar(&c.LogFile, "log-file", c.LogFile, "optional log file path")
	flag.StringVar(&c.AutostartLogPath, "autostart-log-path", c.AutostartLogPath, "log file to subscribe to at startup (empty disables)")
	flag.StringVar(&c.NoopRulesFile, "noop-rules", c.NoopRulesFile, "YAML file overriding the idempotent no-op rule table")
}

// LoadFile populates the config from a YAML file. Fields already set remain
// unless overwritten by corresponding entries in the file.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// Validate checks that required values are present.
func (c *Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "UNRAID_API_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "UNRAID_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GraphQLURL returns the synchronous endpoint, ensuring the /graphql suffix.
func (c *Config) GraphQLURL() string {
	u := strings.TrimRight(c.APIURL, "/")
	if !strings.HasSuffix(u, "/graphql") {
		u += "/graphql"
	}
	return u
}

// WSURL derives the streaming endpoint from the API URL: https becomes wss,
// http becomes ws, and the /graphql suffix is appended when absent.
func (c *Config) WSURL() string {
	u := c.GraphQLURL()
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// TLSConfig builds the TLS client configuration for both transports according
// to TLSVerify: "false" disables verification, a path loads a CA bundle, and
// anything else keeps system defaults.
func (c *Config) TLSConfig() (*tls.Config, error) {
	switch strings.ToLower(c.TLSVerify) {
	case "", "true", "1", "yes":
		return nil, nil
	case "false", "0", "no":
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	pem, err := os.ReadFile(c.TLSVerify)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle %s: %w", c.TLSVerify, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates parsed from CA bundle")
	}
	return &tls.Config{RootCAs: pool}, nil
}

// Summary returns a map safe for logging and status output; the API key is
// masked.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"api_url":                c.APIURL,
		"api_key":                secret.Mask(c.APIKey),
		"default_timeout":        c.DefaultTimeout.String(),
		"extended_timeout":       c.ExtendedTimeout.String(),
		"tls_verify":             c.TLSVerify,
		"max_reconnect_attempts": c.MaxReconnectAttempts,
		"max_backoff":            c.MaxBackoff.String(),
		"log_level":              c.LogLevel,
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are treated as seconds, matching the original env surface.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}
