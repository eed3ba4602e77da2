package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/leapdc/internal/config"
)

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

// configKey is used to store the loaded config in a command context.
type configKey struct{}

// EnvPrefix is the prefix of environment variables read into the config.
// A double underscore separates nested keys: LEAPDC_TARGET__PASSWORD.
const EnvPrefix = "LEAPDC_"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// inferProjectRoot picks the directory relative paths resolve against.
// Priority: the explicit config file's directory, the nearest directory
// above the CWD with a config file, then the CWD.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := intconfig.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// flagKey maps a changed flag to its config key and value.
func flagKey(flags *pflag.FlagSet, f *pflag.Flag) (string, interface{}) {
	if !f.Changed {
		return "", nil
	}
	switch f.Name {
	case "state":
		return "state_path", posflag.FlagVal(flags, f)
	case "no-header":
		v, _ := flags.GetBool("no-header")
		return "header", !v
	case "addr":
		return "server.addr", posflag.FlagVal(flags, f)
	case "config", "fail-on-violation", "only", "parallel", "limit", "debounce", "name", "no-history":
		// Command-local flags that are not config keys.
		return "", nil
	}
	return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
}

// LoadConfig loads configuration from defaults, the config file, LEAPDC_*
// environment variables and explicitly set flags, in increasing precedence.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile)

	// Flag paths are relative to the CWD, not the project root.
	var flagStatePath, flagSuite string
	if flags != nil {
		if f := flags.Lookup("state"); f != nil && f.Changed {
			flagStatePath, _ = filepath.Abs(f.Value.String())
		}
		if f := flags.Lookup("suite"); f != nil && f.Changed {
			flagSuite, _ = filepath.Abs(f.Value.String())
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path": DefaultStateFile,
		"verbose":    false,
		"output":     DefaultOutput,
		"log_level":  DefaultLogLevel,
		"strategy":   "auto",
		"delimiter":  ",",
		"header":     true,
		"suite":      DefaultSuiteFile,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: LEAPDC_MAX_VIOLATIONS -> max_violations
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			return flagKey(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	if flagSuite != "" {
		cfg.Suite = flagSuite
	} else {
		cfg.Suite = resolvePathRelativeTo(cfg.Suite, projectRoot)
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}
	cfg.resolveEngine()
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	intconfig.ApplyServerDefaults(cfg.Server)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvironment() error {
	if c.Environment == "" {
		return nil
	}
	envCfg, ok := c.Environments[c.Environment]
	if !ok {
		return fmt.Errorf("unknown environment %q\nHint: Define it under environments: in %s", c.Environment, intconfig.ConfigFileName)
	}
	if envCfg.Engine != "" {
		c.Engine = envCfg.Engine
	}
	c.Target = MergeTargetConfig(c.Target, envCfg.Target)
	return nil
}

// resolveEngine settles the engine and target. An unset engine follows
// target.type, defaulting to memory; a set engine overrides target.type.
func (c *Config) resolveEngine() {
	c.Engine = strings.ToLower(c.Engine)
	if c.Engine == "" {
		c.Engine = intconfig.DefaultEngine
		if c.Target != nil && c.Target.Type != "" {
			c.Engine = strings.ToLower(c.Target.Type)
		}
	}
	if !c.UsesDatabase() {
		return
	}
	if c.Target == nil {
		c.Target = &TargetConfig{}
	}
	c.Target.Type = c.Engine
	intconfig.ApplyTargetDefaults(c.Target)
	expandTargetEnvVars(c.Target)
	if c.Target.Type != "postgres" {
		c.Target.Database = resolvePathRelativeTo(c.Target.Database, c.ProjectRoot)
	}
}

// WithConfig returns ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or nil.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a validated log level name to a slog level.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn
	}
	return level
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as-is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	for k, v := range t.Options {
		t.Options[k] = expandEnvVars(v)
	}
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &TargetConfig{
		Type:     base.Type,
		Database: base.Database,
		Host:     base.Host,
		Port:     base.Port,
		User:     base.User,
		Password: base.Password,
		Schema:   base.Schema,
		Options:  make(map[string]string),
		Params:   make(map[string]any),
	}
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return merged
}
