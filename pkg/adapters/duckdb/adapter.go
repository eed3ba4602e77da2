package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/table"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements adapter.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect opens a DuckDB database. An empty path or ":memory:" selects an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", cfg.Path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	if err := a.applyParams(ctx); err != nil {
		_ = a.Close()
		a.DB = nil
		return err
	}
	return nil
}

// applyParams loads extensions and applies session settings.
func (a *Adapter) applyParams(ctx context.Context) error {
	for _, ext := range a.params.Extensions {
		if err := a.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(a.params.Settings))
	for k := range a.params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = %s", k, quoteString(a.params.Settings[k]))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// GetTableMetadata describes a table in the main schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, tbl string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, tbl, "main", adapter.QuestionPlaceholder)
}

// LoadCSV loads src with read_csv_auto, letting DuckDB infer column types.
// Column names come from the file header or are Col0, Col1, ...
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, src table.Source) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(src.Path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	names, err := table.ReadHeader(src)
	if err != nil {
		return err
	}
	quotedNames := make([]string, len(names))
	for i, n := range names {
		quotedNames[i] = quoteString(n)
	}

	delim := src.Delimiter
	if delim == 0 {
		delim = table.DefaultDelimiter
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT (row_number() OVER ()) - 1 AS %s, * FROM read_csv_auto(%s, delim=%s, header=%t, names=[%s])",
		adapter.QuoteIdentifier(tableName),
		adapter.QuoteIdentifier(adapter.RowIDColumn),
		quoteString(absPath),
		quoteString(string(delim)),
		src.HasHeader,
		strings.Join(quotedNames, ", "),
	)

	a.Logger.Debug("loading csv", slog.String("table", tableName), slog.String("path", absPath))

	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

// quoteString renders s as a single-quoted SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ adapter.Adapter = (*Adapter)(nil)
