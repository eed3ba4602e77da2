// Package adapter defines the database engines that can verify denial
// constraints in SQL instead of in memory.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init():
//
//	import _ "github.com/leapstack-labs/leapdc/pkg/adapters/duckdb"
package adapter

import (
	"context"
	"database/sql"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/table"
)

// RowIDColumn is the column LoadCSV adds to every table. It holds the
// 0-based position of the row in the source file.
const RowIDColumn = "__leapdc_row"

// Config holds configuration for connecting to a database.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column describes a column of a database table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a loaded table. Columns never include RowIDColumn.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// ColumnIndex finds a column by name, exact match first, then case-insensitive.
func (m *Metadata) ColumnIndex(name string) (int, bool) {
	for i, c := range m.Columns {
		if c.Name == name {
			return i, true
		}
	}
	for i, c := range m.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// ColumnType classifies column i by its engine type. Unrecognized types
// report table.TypeNull.
func (m *Metadata) ColumnType(i int) table.Type {
	return ValueType(m.Columns[i].Type)
}

// ValueType maps an engine column type to the kind of values it holds.
func ValueType(sqlType string) table.Type {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "INT"):
		return table.TypeInt
	case strings.Contains(t, "REAL"), strings.Contains(t, "DOUB"), strings.Contains(t, "FLOA"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return table.TypeDouble
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"), strings.Contains(t, "STRING"):
		return table.TypeString
	default:
		return table.TypeNull
	}
}

// ColumnNames returns column names in table order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows wraps query results.
type Rows struct {
	*sql.Rows
}

// Adapter is the contract every database engine implements.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata describes a loaded table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces tableName with the contents of src, adding RowIDColumn.
	LoadCSV(ctx context.Context, tableName string, src table.Source) error

	// QuoteIdentifier quotes a table or column name for this engine.
	QuoteIdentifier(name string) string

	// DialectName returns the SQL dialect name.
	DialectName() string
}
