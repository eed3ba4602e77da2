// Package config loads the leapdc CLI configuration.
//
// The shared target and server types live in internal/config and are
// re-exported here via type aliases.
package config

import (
	sharedcfg "github.com/leapstack-labs/leapdc/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// ServerConfig is an alias for the shared HTTP server configuration.
type ServerConfig = sharedcfg.ServerConfig

// Config holds all CLI configuration options.
type Config struct {
	StatePath     string               `koanf:"state_path"`
	Environment   string               `koanf:"env"`
	Verbose       bool                 `koanf:"verbose"`
	OutputFormat  string               `koanf:"output"`
	LogLevel      string               `koanf:"log_level"`
	Engine        string               `koanf:"engine"`
	Strategy      string               `koanf:"strategy"`
	MaxViolations int                  `koanf:"max_violations"`
	Delimiter     string               `koanf:"delimiter"`
	Header        bool                 `koanf:"header"`
	Record        bool                 `koanf:"record"`
	Suite         string               `koanf:"suite"`
	Target        *TargetConfig        `koanf:"target"`
	Server        *ServerConfig        `koanf:"server"`
	Environments  map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides selected with --env.
type EnvConfig struct {
	Engine string        `koanf:"engine"`
	Target *TargetConfig `koanf:"target"`
}

// UsesDatabase reports whether verification runs in a SQL engine.
func (c *Config) UsesDatabase() bool {
	return c.Engine != sharedcfg.EngineMemory
}

// Default configuration values.
const (
	DefaultStateFile = ".leapdc/history.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	DefaultSuiteFile = "leapdc-suite.yaml"
)
