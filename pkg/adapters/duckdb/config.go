package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration, decoded from adapter.Config.Params.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json").
	Extensions []string `mapstructure:"extensions"`

	// Settings applied at session level (e.g., memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes raw target params. Nil params yield an empty struct.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
