package dc

import (
	"sort"
	"strings"
)

// OperandKind distinguishes column references from constants.
type OperandKind int

// Operand kinds.
const (
	OperandColumn OperandKind = iota
	OperandNumber
	OperandString
)

// Operand is one side of a predicate: a column of a tuple variable
// (t.Salary) or a constant literal (42, 'NY').
type Operand struct {
	Kind    OperandKind
	Var     string // tuple variable, empty for constants
	Column  string // column name, empty for constants
	Literal string // constant text, unquoted
}

// Col builds a column operand.
func Col(v, column string) Operand {
	return Operand{Kind: OperandColumn, Var: v, Column: column}
}

// IsColumn reports whether the operand references a column.
func (o Operand) IsColumn() bool { return o.Kind == OperandColumn }

// String renders the operand in constraint syntax.
func (o Operand) String() string {
	switch o.Kind {
	case OperandNumber:
		return o.Literal
	case OperandString:
		return "'" + strings.ReplaceAll(o.Literal, "'", "''") + "'"
	default:
		return o.Var + "." + quoteIdent(o.Column)
	}
}

// quoteIdent double-quotes a column name that would not lex as a bare identifier.
func quoteIdent(name string) string {
	if name == "" {
		return `""`
	}
	bare := !isDigit(name[0])
	for i := 0; i < len(name) && bare; i++ {
		c := name[i]
		bare = isLetter(c) || isDigit(c) || c == '_'
	}
	if bare && LookupIdent(strings.ToLower(name)) == TOKEN_IDENT {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Predicate is a single comparison between two operands.
// Left is always a column reference.
type Predicate struct {
	Left  Operand
	Op    Operator
	Right Operand
}

// String renders the predicate, e.g. "t.A <= s.B".
func (p Predicate) String() string {
	return p.Left.String() + " " + p.Op.String() + " " + p.Right.String()
}

// IsCrossTuple reports whether the predicate compares two different tuple variables.
func (p Predicate) IsCrossTuple() bool {
	return p.Right.IsColumn() && p.Left.Var != p.Right.Var
}

// IsHomogeneous reports whether both sides reference the same column name.
func (p Predicate) IsHomogeneous() bool {
	return p.Right.IsColumn() && p.Left.Column == p.Right.Column
}

// Normalize returns the predicate with operands swapped, if needed, so that
// the left variable comes first in order. Predicates against constants are
// returned unchanged.
func (p Predicate) Normalize(order map[string]int) Predicate {
	if !p.Right.IsColumn() {
		return p
	}
	if order[p.Right.Var] < order[p.Left.Var] {
		return Predicate{Left: p.Right, Op: p.Op.Symmetric(), Right: p.Left}
	}
	return p
}

// DC is a denial constraint: a conjunction of predicates that must never
// hold simultaneously for any assignment of distinct rows to its variables.
type DC struct {
	Predicates []Predicate
}

// String renders the constraint as "!(p1 and p2 and ...)".
func (d *DC) String() string {
	parts := make([]string, len(d.Predicates))
	for i, p := range d.Predicates {
		parts[i] = p.String()
	}
	return "!(" + strings.Join(parts, " and ") + ")"
}

// Vars returns the distinct tuple variables in order of first appearance.
func (d *DC) Vars() []string {
	var vars []string
	seen := make(map[string]bool)
	add := func(o Operand) {
		if o.IsColumn() && !seen[o.Var] {
			seen[o.Var] = true
			vars = append(vars, o.Var)
		}
	}
	for _, p := range d.Predicates {
		add(p.Left)
		add(p.Right)
	}
	return vars
}

// VarOrder maps each tuple variable to its position in Vars.
func (d *DC) VarOrder() map[string]int {
	order := make(map[string]int)
	for i, v := range d.Vars() {
		order[v] = i
	}
	return order
}

// Columns returns the distinct referenced column names in order of first appearance.
func (d *DC) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(o Operand) {
		if o.IsColumn() && !seen[o.Column] {
			seen[o.Column] = true
			cols = append(cols, o.Column)
		}
	}
	for _, p := range d.Predicates {
		add(p.Left)
		add(p.Right)
	}
	return cols
}

// ColumnsWithOperator returns the sorted, deduplicated column names that
// appear on either side of predicates using op.
func (d *DC) ColumnsWithOperator(op Operator) []string {
	set := make(map[string]struct{})
	for _, p := range d.Predicates {
		if p.Op != op {
			continue
		}
		set[p.Left.Column] = struct{}{}
		if p.Right.IsColumn() {
			set[p.Right.Column] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// isKeyEquality reports whether p is a cross-tuple equality on one column (t.A == s.A).
func isKeyEquality(p Predicate) bool {
	return p.Op == OpEqual && p.IsCrossTuple() && p.IsHomogeneous()
}

// IsAllEquality reports whether the constraint is a pure key check over two
// tuples: every predicate is t.X == s.X for the same pair of variables.
func (d *DC) IsAllEquality() bool {
	if len(d.Predicates) == 0 || len(d.Vars()) != 2 {
		return false
	}
	for _, p := range d.Predicates {
		if !isKeyEquality(p) {
			return false
		}
	}
	return true
}

// OneInequality returns the single ordering predicate of a two-tuple
// constraint whose remaining predicates are all key equalities. The second
// result is false when the constraint does not have that shape.
func (d *DC) OneInequality() (Predicate, bool) {
	if len(d.Vars()) != 2 {
		return Predicate{}, false
	}
	var found Predicate
	count := 0
	for _, p := range d.Predicates {
		switch {
		case isKeyEquality(p):
		case p.Op.IsInequality() && p.IsCrossTuple():
			found = p
			count++
		default:
			return Predicate{}, false
		}
	}
	if count != 1 {
		return Predicate{}, false
	}
	return found.Normalize(d.VarOrder()), true
}
