package config

import (
	"github.com/vietddude/softscan/internal/infra/inventory"
	"github.com/vietddude/softscan/internal/infra/llm"
	redisclient "github.com/vietddude/softscan/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Service  llm.Config         `yaml:"service"`
	Scan     ScanConfig         `yaml:"scan"`
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Database inventory.DBConfig `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ScanConfig controls how a batch is assembled and dispatched.
type ScanConfig struct {
	Concurrency int    `yaml:"concurrency"` // <= 0 uses the dispatcher default
	Source      string `yaml:"source"`      // local, postgres
	Host        string `yaml:"host"`        // inventory key for the postgres source
	Filter      string `yaml:"filter"`
}

// ServerConfig holds HTTP server settings. Port 0 disables the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

const (
	SourceLocal    = "local"
	SourcePostgres = "postgres"
)

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		Service: llm.DefaultConfig(),
		Scan:    ScanConfig{Source: SourceLocal},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
