package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// LogLevels lists the accepted --log-level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q\nHint: Use one of %s", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if !slices.Contains(LogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level %q\nHint: Use one of %s", c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if _, err := verify.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := table.ParseDelimiter(c.Delimiter); err != nil {
		return err
	}
	if c.UsesDatabase() {
		if c.Target == nil {
			return fmt.Errorf("engine %q needs a target", c.Engine)
		}
		if err := c.Target.Validate(); err != nil {
			return fmt.Errorf("invalid target configuration: %w", err)
		}
	}
	return nil
}

// DelimiterRune returns the configured delimiter. Call Validate first.
func (c *Config) DelimiterRune() rune {
	r, err := table.ParseDelimiter(c.Delimiter)
	if err != nil {
		return table.DefaultDelimiter
	}
	return r
}
