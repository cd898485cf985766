package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// APIKeyEnv is consulted when neither the flag nor the file sets a key.
const APIKeyEnv = "PERPLEXITY_API_KEY"

// ErrAPIKeyRequired is returned when no credential can be resolved.
var ErrAPIKeyRequired = errors.New("API key required")

// Load reads configuration from a YAML file. An empty path, or a path that
// does not exist, yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Service.URL == "" {
		cfg.Service.URL = def.Service.URL
	}
	if cfg.Service.Model == "" {
		cfg.Service.Model = def.Service.Model
	}
	if cfg.Service.Timeout <= 0 {
		cfg.Service.Timeout = def.Service.Timeout
	}
	if cfg.Service.MaxRetries <= 0 {
		cfg.Service.MaxRetries = def.Service.MaxRetries
	}
	if cfg.Service.RetryDelay <= 0 {
		cfg.Service.RetryDelay = def.Service.RetryDelay
	}
	if cfg.Scan.Source == "" {
		cfg.Scan.Source = def.Scan.Source
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// Validate checks values that have no sensible fallback.
func (c *AppConfig) Validate() error {
	switch c.Scan.Source {
	case SourceLocal:
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("scan source %q requires database.url", c.Scan.Source)
		}
	default:
		return fmt.Errorf("unknown scan source %q", c.Scan.Source)
	}
	if c.Server.Port < 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// ResolveAPIKey picks the credential: flag first, then the config file,
// then the environment.
func (c *AppConfig) ResolveAPIKey(flag string) (string, error) {
	for _, key := range []string{flag, c.Service.APIKey, os.Getenv(APIKeyEnv)} {
		if key != "" {
			return key, nil
		}
	}
	return "", ErrAPIKeyRequired
}
