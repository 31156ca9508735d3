// ABOUTME: Auth configuration built once at startup and read-only afterwards
// ABOUTME: Normalizes public, issuer and resource URLs and parses scopes

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinSecretLength is the minimum JWT secret length in bytes.
const MinSecretLength = 32

// Config describes how the HTTP transport authenticates callers.
type Config struct {
	Token       string
	TokenHash   string
	JWTSecret   string
	PublicURL   string
	IssuerURL   string
	ResourceURL string
	Scopes      []string
}

// Enabled reports whether any credential source is configured.
func (c *Config) Enabled() bool {
	return c != nil && (c.Token != "" || c.TokenHash != "" || c.JWTSecret != "")
}

// NewConfig validates raw and fills URL defaults from the listen address.
// A config with no credential source is returned as-is (auth disabled).
func NewConfig(raw Config, host string, port int) (*Config, error) {
	cfg := raw
	if !cfg.Enabled() {
		return &cfg, nil
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}

	var err error
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL(host, port)
	}
	if cfg.PublicURL, err = NormalizeURL(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("public url: %w", err)
	}
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = cfg.PublicURL
	}
	if cfg.IssuerURL, err = NormalizeURL(cfg.IssuerURL); err != nil {
		return nil, fmt.Errorf("issuer url: %w", err)
	}
	if cfg.ResourceURL == "" {
		cfg.ResourceURL = cfg.PublicURL
	}
	if cfg.ResourceURL, err = NormalizeURL(cfg.ResourceURL); err != nil {
		return nil, fmt.Errorf("resource url: %w", err)
	}

	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	return &cfg, nil
}

// NormalizeURL strips trailing slashes and requires an http(s) scheme.
func NormalizeURL(u string) (string, error) {
	normalized := strings.TrimRight(strings.TrimSpace(u), "/")
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		return "", errors.New("url must start with http:// or https://")
	}
	return normalized, nil
}

// DefaultPublicURL derives a reachable URL from the listen address.
func DefaultPublicURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "localhost", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + strconv.Itoa(port)
}

// ParseScopes splits a comma-separated scope list, dropping blanks.
func ParseScopes(raw string) []string {
	var scopes []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// MetadataURL is where the protected resource metadata document is served.
func (c *Config) MetadataURL() string {
	return c.PublicURL + MetadataPath
}
