// Package sqlverify verifies denial constraints inside a database by
// translating them into a self-join.
package sqlverify

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdc/pkg/adapter"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// neverTrue replaces a predicate whose sides can never compare equal or
// ordered, the same way the in-memory strategies treat them.
const neverTrue = "1 = 0"

// TypedSchema is a schema that also reports the kind of values each column
// holds. Columns of type table.TypeNull are not checked.
type TypedSchema interface {
	dc.Schema
	ColumnType(i int) table.Type
}

// Query is a translated constraint. Each result row holds one row id per
// variable, in Vars order.
type Query struct {
	SQL  string
	Vars []string
}

// Translate renders d as a query over tableName returning the row ids of
// every violating assignment. A limit of zero or less omits LIMIT.
//
// The table must carry adapter.RowIDColumn. Column names are resolved
// against schema and quoted with quote. When schema is a TypedSchema,
// comparisons follow the in-memory rules instead of the engine's: ordering
// a numeric column against a string column fails with
// verify.ErrIncomparableColumns, and any other number/string comparison
// never matches.
func Translate(d *dc.DC, schema dc.Schema, tableName string, quote func(string) string, limit int) (*Query, error) {
	b, err := d.Bind(schema)
	if err != nil {
		return nil, err
	}
	names := schema.ColumnNames()
	rowID := quote(adapter.RowIDColumn)
	n := len(b.Vars)

	alias := func(v int) string { return fmt.Sprintf("t%d", v) }

	var selects, from, where, order []string
	for v := 0; v < n; v++ {
		selects = append(selects, fmt.Sprintf("%s.%s AS %s", alias(v), rowID, quote(b.Vars[v])))
		from = append(from, fmt.Sprintf("%s %s", quote(tableName), alias(v)))
		order = append(order, fmt.Sprintf("%s.%s", alias(v), rowID))
		for w := 0; w < v; w++ {
			where = append(where, fmt.Sprintf("%s.%s <> %s.%s", alias(w), rowID, alias(v), rowID))
		}
	}

	typed, _ := schema.(TypedSchema)
	typeOf := func(col int) table.Type {
		if typed == nil {
			return table.TypeNull
		}
		return typed.ColumnType(col)
	}

	for _, p := range b.Predicates {
		if p.Right.Kind == dc.OperandColumn {
			lt, rt := typeOf(p.LeftCol), typeOf(p.RightCol)
			if mixed(lt, rt) && p.Op.IsInequality() {
				return nil, fmt.Errorf("%w: %s is %s, %s is %s",
					verify.ErrIncomparableColumns, names[p.LeftCol], lt, names[p.RightCol], rt)
			}
		}
		if !sameKind(p, typeOf) {
			where = append(where, neverTrue)
			continue
		}

		left := fmt.Sprintf("%s.%s", alias(p.LeftVar), quote(names[p.LeftCol]))
		var right string
		switch p.Right.Kind {
		case dc.OperandColumn:
			right = fmt.Sprintf("%s.%s", alias(p.RightVar), quote(names[p.RightCol]))
		case dc.OperandNumber:
			v, err := table.ParseNumber(p.Right.Literal)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q in %s: %w", p.Right.Literal, p.Predicate, err)
			}
			right = v.String()
		case dc.OperandString:
			right = "'" + strings.ReplaceAll(p.Right.Literal, "'", "''") + "'"
		}
		where = append(where, fmt.Sprintf("%s %s %s", left, p.Op.SQL(), right))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(strings.Join(from, ", "))
	sb.WriteString("\nWHERE ")
	sb.WriteString(strings.Join(where, "\n  AND "))
	sb.WriteString("\nORDER BY ")
	sb.WriteString(strings.Join(order, ", "))
	if limit > 0 {
		fmt.Fprintf(&sb, "\nLIMIT %d", limit)
	}

	return &Query{SQL: sb.String(), Vars: b.Vars}, nil
}

// mixed reports whether one known type is numeric and the other is not.
func mixed(a, b table.Type) bool {
	return a != table.TypeNull && b != table.TypeNull && a.IsNumeric() != b.IsNumeric()
}

// sameKind reports whether both sides of p can hold values of the same kind.
func sameKind(p dc.BoundPredicate, typeOf func(int) table.Type) bool {
	left := typeOf(p.LeftCol)
	switch p.Right.Kind {
	case dc.OperandColumn:
		return !mixed(left, typeOf(p.RightCol))
	case dc.OperandNumber:
		return !mixed(left, table.TypeDouble)
	default:
		return !mixed(left, table.TypeString)
	}
}
