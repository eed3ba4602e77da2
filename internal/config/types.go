// Package config provides the project configuration types shared by the
// CLI and the HTTP server.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
)

// EngineMemory verifies constraints in process without a database.
const EngineMemory = "memory"

// TargetConfig holds database target configuration for the SQL engines.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, sqlite

	// File-based databases (DuckDB, SQLite). Empty means in-memory.
	Database string `koanf:"database"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g. DuckDB extensions and settings)
	Params map[string]any `koanf:"params"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// MaxUploadBytes bounds the CSV body accepted by POST /api/verify.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Validate checks that the target names a registered adapter.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the target into the adapter connection settings.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	cfg := adapter.Config{
		Type:     strings.ToLower(t.Type),
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	// File engines take a path; network engines a database name.
	switch cfg.Type {
	case "duckdb", "sqlite":
		cfg.Path = t.Database
	default:
		cfg.Database = t.Database
	}
	return cfg
}
