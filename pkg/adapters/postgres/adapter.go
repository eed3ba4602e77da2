// Package postgres provides the PostgreSQL engine for leapdc.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/table"
)

// columnTypes maps inferred CSV column types to PostgreSQL types.
var columnTypes = adapter.TypeNames{
	table.TypeNull:   "TEXT",
	table.TypeInt:    "BIGINT",
	table.TypeDouble: "DOUBLE PRECISION",
	table.TypeString: "TEXT",
}

// Adapter implements adapter.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
// Options other than sslmode are appended in key order.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if k != "sslmode" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		dsn += fmt.Sprintf(" %s=%s", k, cfg.Options[k])
	}

	return dsn
}

// defaultSchema returns the configured schema or "public".
func (a *Adapter) defaultSchema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return "public"
}

// GetTableMetadata describes a table, defaulting to the configured schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, tbl string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, tbl, a.defaultSchema(), adapter.DollarPlaceholder)
}

// LoadCSV types the file with the in-memory loader, creates a matching table
// and streams the rows in with COPY.
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

	if err := a.copyRows(ctx, tableName, t); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}

	a.Logger.Debug("loaded csv", slog.String("table", tableName), slog.Int("rows", t.NumRows()))
	return nil
}

// copyRows uses the pgx COPY protocol on the underlying connection.
func (a *Adapter) copyRows(ctx context.Context, tableName string, t *table.Table) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	columns := append([]string{adapter.RowIDColumn}, t.ColumnNames()...)
	rows := make([][]any, t.NumRows())
	for r := range rows {
		rows[r] = adapter.RowArgs(t, r)
	}

	return conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		n, err := pgxConn.CopyFrom(ctx, identifier(tableName), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("copied %d of %d rows", n, len(rows))
		}
		return nil
	})
}

// identifier splits an optional schema prefix off tableName.
func identifier(tableName string) pgx.Identifier {
	if schema, name, ok := strings.Cut(tableName, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{tableName}
}

var _ adapter.Adapter = (*Adapter)(nil)
