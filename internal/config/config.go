// ABOUTME: Configuration loading and parsing for the weather-travel server
// ABOUTME: Supports YAML or TOML files, ${VAR} expansion, .env files and MCP_*/WEATHER_* overrides

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/weather-travel/internal/auth"
)

// Transport names.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Defaults applied before the file and environment are read.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8000
	DefaultTimeout       = 10 * time.Second
	DefaultBackoff       = time.Second
	DefaultMaxRetryAfter = 5 * time.Second
	DefaultRateLimit     = 5.0
	DefaultRateBurst     = 5
	DefaultGeocodeCache  = 256
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Config represents the complete weather-travel configuration
type Config struct {
	Transport string          `yaml:"transport" toml:"transport"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Weather   WeatherConfig   `yaml:"weather" toml:"weather"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel (implies HTTPS on :443)
}

// AuthConfig holds bearer authentication for the HTTP transport
type AuthConfig struct {
	Token       string   `yaml:"token" toml:"token"`
	TokenHash   string   `yaml:"token_hash" toml:"token_hash"`
	JWTSecret   string   `yaml:"jwt_secret" toml:"jwt_secret"`
	Scopes      []string `yaml:"scopes" toml:"scopes"`
	PublicURL   string   `yaml:"public_url" toml:"public_url"`
	IssuerURL   string   `yaml:"issuer_url" toml:"issuer_url"`
	ResourceURL string   `yaml:"resource_url" toml:"resource_url"`
}

// WeatherConfig holds upstream client settings
type WeatherConfig struct {
	GeocodingURL     string  `yaml:"geocoding_url" toml:"geocoding_url"`
	ForecastURL      string  `yaml:"forecast_url" toml:"forecast_url"`
	UserAgent        string  `yaml:"user_agent" toml:"user_agent"`
	RateLimit        float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst        int     `yaml:"rate_burst" toml:"rate_burst"`
	GeocodeCacheSize int     `yaml:"geocode_cache_size" toml:"geocode_cache_size"`

	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`

	Timeout       time.Duration `yaml:"-" toml:"-"`
	Backoff       time.Duration `yaml:"-" toml:"-"`
	MaxRetryAfter time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw       string `yaml:"timeout" toml:"timeout"`
	BackoffRaw       string `yaml:"backoff" toml:"backoff"`
	MaxRetryAfterRaw string `yaml:"max_retry_after" toml:"max_retry_after"`
}

// BreakerConfig holds the optional upstream circuit breaker
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled" toml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" toml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"-" toml:"-"`
	OpenTimeoutRaw      string        `yaml:"open_timeout" toml:"open_timeout"`
}

// AuditConfig holds the invocation audit log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Transport: TransportStdio,
		Server:    ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Weather: WeatherConfig{
			RateLimit:        DefaultRateLimit,
			RateBurst:        DefaultRateBurst,
			GeocodeCacheSize: DefaultGeocodeCache,
			Timeout:          DefaultTimeout,
			Backoff:          DefaultBackoff,
			MaxRetryAfter:    DefaultMaxRetryAfter,
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load builds a Config from defaults, the optional file at path, and the
// process environment, then validates it. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// readFile decodes a YAML or TOML file over the current values.
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("MCP_TRANSPORT", &c.Transport)
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	str("MCP_HOST", &c.Server.Host)
	if v, ok := lookup("MCP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("MCP_PORT: %q is not a number", v)
		}
		c.Server.Port = port
	}
	str("MCP_LOG_LEVEL", &c.Logging.Level)
	str("MCP_LOG_FORMAT", &c.Logging.Format)

	str("MCP_AUTH_TOKEN", &c.Auth.Token)
	str("MCP_AUTH_TOKEN_HASH", &c.Auth.TokenHash)
	str("MCP_AUTH_JWT_SECRET", &c.Auth.JWTSecret)
	if v, ok := lookup("MCP_AUTH_SCOPES"); ok && v != "" {
		c.Auth.Scopes = auth.ParseScopes(v)
	}
	str("MCP_PUBLIC_URL", &c.Auth.PublicURL)
	str("MCP_ISSUER_URL", &c.Auth.IssuerURL)
	str("MCP_RESOURCE_URL", &c.Auth.ResourceURL)

	if err := dur("WEATHER_TIMEOUT", &c.Weather.Timeout); err != nil {
		return err
	}
	if err := dur("WEATHER_BACKOFF", &c.Weather.Backoff); err != nil {
		return err
	}
	str("WEATHER_AUDIT_DB", &c.Audit.Path)
	return nil
}

// parseSeconds accepts a Go duration ("1.5s") or a bare number of seconds ("10").
func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport)
	}

	if c.Transport == TransportHTTP && !c.Tailscale.Enabled {
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required for the http transport (or enable tailscale)")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
		}
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Auth.Token != "" && c.Auth.TokenHash != "" {
		return fmt.Errorf("auth.token and auth.token_hash are mutually exclusive")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}

	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	// The client substitutes its default for a zero backoff, so zero is rejected here.
	if c.Weather.Backoff <= 0 {
		return fmt.Errorf("weather.backoff must be positive")
	}
	if c.Weather.MaxRetryAfter < 0 {
		return fmt.Errorf("weather.max_retry_after must not be negative")
	}
	if c.Weather.RateLimit < 0 {
		return fmt.Errorf("weather.rate_limit must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// AuthSettings converts the auth section for auth.NewConfig.
func (c *Config) AuthSettings() auth.Config {
	return auth.Config{
		Token:       c.Auth.Token,
		TokenHash:   c.Auth.TokenHash,
		JWTSecret:   c.Auth.JWTSecret,
		PublicURL:   c.Auth.PublicURL,
		IssuerURL:   c.Auth.IssuerURL,
		ResourceURL: c.Auth.ResourceURL,
		Scopes:      c.Auth.Scopes,
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"weather.timeout", cfg.Weather.TimeoutRaw, &cfg.Weather.Timeout},
		{"weather.backoff", cfg.Weather.BackoffRaw, &cfg.Weather.Backoff},
		{"weather.max_retry_after", cfg.Weather.MaxRetryAfterRaw, &cfg.Weather.MaxRetryAfter},
		{"weather.breaker.open_timeout", cfg.Weather.Breaker.OpenTimeoutRaw, &cfg.Weather.Breaker.OpenTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
