package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrIncomparable is returned when two values cannot be ordered against each
// other: a null or NaN on either side, or a number against a string.
var ErrIncomparable = errors.New("values are not comparable")

// Type is the inferred type of a column or value.
type Type int

// Column and value types.
const (
	TypeNull Type = iota
	TypeInt
	TypeDouble
	TypeString
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the type is int or double.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeDouble
}

// Value is a typed table cell.
type Value struct {
	Kind Type
	I    int64
	F    float64
	S    string
}

// Null is the null value.
var Null = Value{Kind: TypeNull}

// Int returns an int value.
func Int(i int64) Value { return Value{Kind: TypeInt, I: i} }

// Double returns a double value.
func Double(f float64) Value { return Value{Kind: TypeDouble, F: f} }

// String returns a string value.
func String(s string) Value { return Value{Kind: TypeString, S: s} }

// ParseNumber parses a numeric literal, preferring int when it fits.
func ParseNumber(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	f, ok := parseDecimal(s)
	if !ok {
		return Null, fmt.Errorf("invalid number %q", s)
	}
	return Double(f), nil
}

// parseDecimal parses a finite decimal number. Spellings strconv also accepts,
// such as "nan", "inf" and hex floats, are rejected.
func parseDecimal(s string) (float64, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789+-.eE") != "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == TypeNull }

// Float returns the numeric value as float64.
func (v Value) Float() float64 {
	if v.Kind == TypeInt {
		return float64(v.I)
	}
	return v.F
}

// Compare orders v against o, returning a negative number, zero, or a
// positive number. Ints and doubles compare numerically with each other.
// Strings compare byte-wise.
func (v Value) Compare(o Value) (int, error) {
	switch {
	case v.Kind == TypeInt && o.Kind == TypeInt:
		switch {
		case v.I < o.I:
			return -1, nil
		case v.I > o.I:
			return 1, nil
		}
		return 0, nil
	case v.Kind.IsNumeric() && o.Kind.IsNumeric():
		a, b := v.Float(), o.Float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, ErrIncomparable
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	case v.Kind == TypeString && o.Kind == TypeString:
		return strings.Compare(v.S, o.S), nil
	default:
		return 0, ErrIncomparable
	}
}

// Key returns a canonical string for grouping equal values. Numbers of equal
// magnitude share a key regardless of whether they came from an int or a
// double column.
func (v Value) Key() string {
	switch v.Kind {
	case TypeInt:
		return "n:" + strconv.FormatInt(v.I, 10)
	case TypeDouble:
		if v.F == math.Trunc(v.F) && math.Abs(v.F) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(v.F), 10)
		}
		return "n:" + strconv.FormatFloat(v.F, 'g', -1, 64)
	case TypeString:
		return "s:" + v.S
	default:
		return "\x00"
	}
}

// String renders the value for display. Null renders as an empty string.
func (v Value) String() string {
	switch v.Kind {
	case TypeInt:
		return strconv.FormatInt(v.I, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case TypeString:
		return v.S
	default:
		return ""
	}
}
