package dc

import "fmt"

// Operator is a comparison operator used in a predicate.
type Operator int

// Comparison operators.
const (
	OpEqual Operator = iota
	OpUnequal
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// String returns the canonical spelling of the operator.
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpUnequal:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// ParseOperator converts an operator spelling to an Operator.
// Accepts "==", "=", "!=", "<>", "<", "<=", ">", ">=".
func ParseOperator(s string) (Operator, bool) {
	switch s {
	case "==", "=":
		return OpEqual, true
	case "!=", "<>":
		return OpUnequal, true
	case "<":
		return OpLess, true
	case "<=":
		return OpLessEqual, true
	case ">":
		return OpGreater, true
	case ">=":
		return OpGreaterEqual, true
	default:
		return OpEqual, false
	}
}

// operatorForToken maps a comparison token to its operator.
func operatorForToken(t TokenType) Operator {
	switch t {
	case TOKEN_NE:
		return OpUnequal
	case TOKEN_LT:
		return OpLess
	case TOKEN_LE:
		return OpLessEqual
	case TOKEN_GT:
		return OpGreater
	case TOKEN_GE:
		return OpGreaterEqual
	default:
		return OpEqual
	}
}

// Inverse returns the negation of the operator: a op b == !(a inv b).
func (o Operator) Inverse() Operator {
	switch o {
	case OpEqual:
		return OpUnequal
	case OpUnequal:
		return OpEqual
	case OpLess:
		return OpGreaterEqual
	case OpLessEqual:
		return OpGreater
	case OpGreater:
		return OpLessEqual
	default:
		return OpLess
	}
}

// Symmetric returns the operator that holds after swapping operands:
// a op b == b sym a.
func (o Operator) Symmetric() Operator {
	switch o {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	default:
		return o
	}
}

// IsEquality reports whether the operator is ==.
func (o Operator) IsEquality() bool { return o == OpEqual }

// IsInequality reports whether the operator is an ordering comparison
// (<, <=, >, >=). != is not an ordering comparison.
func (o Operator) IsInequality() bool {
	return o == OpLess || o == OpLessEqual || o == OpGreater || o == OpGreaterEqual
}

// Eval reports whether a three-way comparison result (negative, zero,
// positive) satisfies the operator.
func (o Operator) Eval(cmp int) bool {
	switch o {
	case OpEqual:
		return cmp == 0
	case OpUnequal:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

// SQL returns the SQL spelling of the operator.
func (o Operator) SQL() string {
	switch o {
	case OpEqual:
		return "="
	case OpUnequal:
		return "<>"
	default:
		return o.String()
	}
}
