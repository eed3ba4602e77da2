package dc

import (
	"fmt"
	"strings"
)

// ParseError represents a constraint parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// UnknownColumnError is returned when a constraint references a column the
// table does not have.
type UnknownColumnError struct {
	Column    string
	Available []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q\nAvailable columns: %s", e.Column, strings.Join(e.Available, ", "))
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrUnterminatedString = "unterminated quoted literal"
	ErrEmptyConstraint    = "constraint has no predicates"
	ErrExpectedOperator   = "expected comparison operator, got %s"
	ErrTrailingInput      = "unexpected %s after end of constraint"
	ErrInvalidNumber      = "invalid number %q"
)
