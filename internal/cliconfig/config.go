// Package cliconfig loads the CLI's YAML configuration file.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	netatmo "github.com/cgtobi/netatmo-api-go"
)

// Config holds the CLI configuration.
type Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	BaseURL      string   `yaml:"base_url"`
}

// DefaultPath returns the default config location,
// ~/.config/netatmo/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, ".config", "netatmo", "config.yaml"), nil
}

// Load reads the configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing, so secrets can live outside
// the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate required fields
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client_secret is required")
	}
	for _, s := range cfg.Scopes {
		if !netatmo.ValidScope(netatmo.Scope(s)) {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = netatmo.DefaultBaseURL
	}
	if len(cfg.Scopes) == 0 {
		for _, s := range netatmo.DefaultScopes() {
			cfg.Scopes = append(cfg.Scopes, string(s))
		}
	}

	return &cfg, nil
}

// OAuthConfig converts the loaded configuration into the library's OAuth
// configuration. The redirect URL only matters for the authorization-code
// flow and comes from the command line.
func (c *Config) OAuthConfig(redirectURL string) *netatmo.OAuthConfig {
	scopes := make([]netatmo.Scope, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		scopes = append(scopes, netatmo.Scope(s))
	}
	return &netatmo.OAuthConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}
