// Package sqlite provides the SQLite engine for leapdc, backed by the pure-Go
// modernc.org/sqlite driver.
//
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/leapdc/pkg/adapters/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/table"

	_ "modernc.org/sqlite" // sqlite driver
)

var columnTypes = adapter.TypeNames{
	table.TypeNull:   "TEXT",
	table.TypeInt:    "INTEGER",
	table.TypeDouble: "REAL",
	table.TypeString: "TEXT",
}

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

// Adapter implements adapter.Adapter for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
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
	return "sqlite"
}

// Connect opens a SQLite database file. An empty path selects ":memory:".
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// GetTableMetadata describes a table with PRAGMA table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, tbl string) (*adapter.Metadata, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, name := adapter.ParseQualifiedName(tbl, "main")
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", adapter.QuoteIdentifier(schema), adapter.QuoteIdentifier(name))

	rows, err := a.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []adapter.Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		if colName == adapter.RowIDColumn {
			continue
		}
		columns = append(columns, adapter.Column{
			Name:     colName,
			Type:     colType,
			Nullable: notNull == 0,
			Position: cid + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tbl)
	}

	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", adapter.QuoteIdentifier(schema), adapter.QuoteIdentifier(name)) //nolint:gosec // quoted identifiers
	if err := a.DB.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		count = 0
	}

	return &adapter.Metadata{Schema: schema, Name: name, Columns: columns, RowCount: count}, nil
}

// LoadCSV types the file with the in-memory loader and inserts it into a
// matching table.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, src table.Source) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	t, err := table.LoadCSV(ctx, src)
	if err != nil {
		return err
	}
	if err := a.CreateTable(ctx, tableName, t, columnTypes); err != nil {
		return err
	}
	if err := a.InsertRows(ctx, tableName, t, adapter.QuestionPlaceholder); err != nil {
		return err
	}

	a.Logger.Debug("loaded csv", slog.String("table", tableName), slog.Int("rows", t.NumRows()))
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
