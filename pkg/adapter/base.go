package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/leapstack-labs/leapdc/pkg/table"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters to get Close, Exec, Query, metadata lookup
// and typed table creation.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// QuoteIdentifier quotes name with double quotes, doubling embedded quotes.
// DuckDB, PostgreSQL and SQLite all accept this form.
func (b *BaseSQLAdapter) QuoteIdentifier(name string) string {
	return QuoteIdentifier(name)
}

// QuoteIdentifier quotes name with double quotes, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParseQualifiedName splits a table reference into schema and name.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

// QuestionPlaceholder renders "?" placeholders (DuckDB, SQLite).
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$n" placeholders (PostgreSQL).
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// GetTableMetadataCommon describes a table through information_schema.columns.
// Engines without information_schema implement GetTableMetadata themselves.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, tbl, defaultSchema string, ph Placeholder) (*Metadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema, tableName := ParseQualifiedName(tbl, defaultSchema)

	//nolint:gosec // placeholders are fixed strings
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, ph(1), ph(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		if col.Name == RowIDColumn {
			continue
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tbl)
	}

	return &Metadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: b.countRows(ctx, QuoteIdentifier(schema)+"."+QuoteIdentifier(tableName)),
	}, nil
}

// countRows returns the row count of a quoted table name, or 0 on error.
func (b *BaseSQLAdapter) countRows(ctx context.Context, quoted string) int64 {
	var n int64
	if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&n); err != nil { //nolint:gosec // quoted identifier
		return 0
	}
	return n
}

// TypeNames maps inferred column types to engine column types.
type TypeNames map[table.Type]string

// CreateTable drops and recreates tableName with RowIDColumn followed by
// one typed column per column of t.
func (b *BaseSQLAdapter) CreateTable(ctx context.Context, tableName string, t *table.Table, types TypeNames) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	quoted := QuoteIdentifier(tableName)
	if _, err := b.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	colDefs := []string{QuoteIdentifier(RowIDColumn) + " " + types[table.TypeInt]}
	for _, col := range t.Columns {
		typ, ok := types[col.Type]
		if !ok {
			typ = types[table.TypeString]
		}
		colDefs = append(colDefs, QuoteIdentifier(col.Name)+" "+typ)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(colDefs, ", "))
	if _, err := b.DB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertRows inserts every row of t with a prepared statement inside one
// transaction. Null cells are inserted as NULL.
func (b *BaseSQLAdapter) InsertRows(ctx context.Context, tableName string, t *table.Table, ph Placeholder) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	cols := append([]string{RowIDColumn}, t.ColumnNames()...)
	quotedCols := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = QuoteIdentifier(c)
		params[i] = ph(i + 1)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(tableName), strings.Join(quotedCols, ", "), strings.Join(params, ", "))

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for r := 0; r < t.NumRows(); r++ {
		if _, err := stmt.ExecContext(ctx, RowArgs(t, r)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

// RowArgs returns the bind arguments of row r, starting with its row id.
func RowArgs(t *table.Table, r int) []any {
	args := make([]any, 0, t.NumColumns()+1)
	args = append(args, int64(r))
	for _, v := range t.Row(r) {
		args = append(args, SQLValue(v))
	}
	return args
}

// SQLValue converts a cell to a database/sql argument.
func SQLValue(v table.Value) any {
	switch v.Kind {
	case table.TypeInt:
		return v.I
	case table.TypeDouble:
		return v.F
	case table.TypeString:
		return v.S
	default:
		return nil
	}
}

// SanitizeTableName turns a file name into a table name made of letters,
// digits and underscores.
func SanitizeTableName(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			sb.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "data"
	}
	return sb.String()
}
