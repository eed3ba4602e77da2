// Package duckdb provides the DuckDB engine for leapdc.
//
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/leapdc/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
