// Package table holds typed, column-oriented tabular data and loads it from CSV.
//
// Every column gets a single inferred type (int, double, string, or null for
// all-empty columns). Empty cells are nulls.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors returned while building tables.
var (
	ErrEmptyTable      = errors.New("table is empty")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Column is a single typed column.
type Column struct {
	Name   string
	Index  int
	Type   Type
	Values []Value
}

// IsNumeric reports whether the column holds ints or doubles.
func (c *Column) IsNumeric() bool {
	return c.Type.IsNumeric()
}

// NullCount returns the number of null cells in the column.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

// Field describes a column for schema listings.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Nulls int    `json:"nulls"`
}

// Table is column-oriented typed data.
type Table struct {
	Name    string
	Columns []*Column
	rows    int
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.Columns) }

// ColumnNames returns column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex finds a column by name. An exact match wins; otherwise the
// first case-insensitive match is used.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// ColumnType returns the inferred type of column i.
func (t *Table) ColumnType(i int) Type { return t.Columns[i].Type }

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// Value returns the cell at row, col.
func (t *Table) Value(row, col int) Value {
	return t.Columns[col].Values[row]
}

// Row returns all cells of a row.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.Columns))
	for c, col := range t.Columns {
		row[c] = col.Values[i]
	}
	return row
}

// Schema describes the table's columns.
func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = Field{Name: c.Name, Type: c.Type.String(), Nulls: c.NullCount()}
	}
	return fields
}

// DefaultColumnName is the name given to column i of a header-less table.
func DefaultColumnName(i int) string {
	return "Col" + strconv.Itoa(i)
}

// FromRecords builds a typed table from string records. When header is nil,
// columns are named Col0, Col1, ... after the width of the first record.
func FromRecords(name string, header []string, records [][]string) (*Table, error) {
	if header == nil {
		if len(records) == 0 {
			return nil, ErrEmptyTable
		}
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = DefaultColumnName(i)
		}
	}
	if len(header) == 0 {
		return nil, ErrEmptyTable
	}

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = true
	}

	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("record %d: expected %d fields, got %d", i+1, len(header), len(rec))
		}
	}

	t := &Table{Name: name, rows: len(records)}
	cells := make([]string, len(records))
	for c, h := range header {
		for r, rec := range records {
			cells[r] = strings.TrimSpace(rec[c])
		}
		t.Columns = append(t.Columns, buildColumn(h, c, cells))
	}
	return t, nil
}

// buildColumn infers the column type from its cells and parses them.
func buildColumn(name string, index int, cells []string) *Column {
	typ := inferType(cells)
	col := &Column{Name: name, Index: index, Type: typ, Values: make([]Value, len(cells))}
	for i, s := range cells {
		col.Values[i] = parseCell(s, typ)
	}
	return col
}

func inferType(cells []string) Type {
	typ := TypeNull
	for _, s := range cells {
		if s == "" {
			continue
		}
		switch typ {
		case TypeNull, TypeInt:
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				typ = TypeInt
				continue
			}
			if _, ok := parseDecimal(s); ok {
				typ = TypeDouble
				continue
			}
			return TypeString
		case TypeDouble:
			if _, ok := parseDecimal(s); !ok {
				return TypeString
			}
		}
	}
	return typ
}

func parseCell(s string, typ Type) Value {
	if s == "" {
		return Null
	}
	switch typ {
	case TypeInt:
		i, _ := strconv.ParseInt(s, 10, 64)
		return Int(i)
	case TypeDouble:
		f, _ := parseDecimal(s)
		return Double(f)
	default:
		return String(s)
	}
}
