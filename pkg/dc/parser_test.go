package dc

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *DC
	}{
		{
			name:  "three-variable constraint",
			input: "!(j.Col0 == s.Col0 and t.C <= t.B)",
			want: &DC{Predicates: []Predicate{
				{Left: Col("j", "Col0"), Op: OpEqual, Right: Col("s", "Col0")},
				{Left: Col("t", "C"), Op: OpLessEqual, Right: Col("t", "B")},
			}},
		},
		{
			name:  "key constraint",
			input: "!(t.Col0 == s.Col0 and t.Col1 == s.Col1)",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "Col0"), Op: OpEqual, Right: Col("s", "Col0")},
				{Left: Col("t", "Col1"), Op: OpEqual, Right: Col("s", "Col1")},
			}},
		},
		{
			name:  "without negation wrapper",
			input: "t.A = s.A AND t.B <> s.B",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "A"), Op: OpEqual, Right: Col("s", "A")},
				{Left: Col("t", "B"), Op: OpUnequal, Right: Col("s", "B")},
			}},
		},
		{
			name:  "parenthesized predicates",
			input: "!((t.A == s.A) && (t.B > s.B))",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "A"), Op: OpEqual, Right: Col("s", "A")},
				{Left: Col("t", "B"), Op: OpGreater, Right: Col("s", "B")},
			}},
		},
		{
			name:  "wrapped without negation",
			input: "(t.A == s.A and t.B < s.B)",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "A"), Op: OpEqual, Right: Col("s", "A")},
				{Left: Col("t", "B"), Op: OpLess, Right: Col("s", "B")},
			}},
		},
		{
			name:  "wrapped with nested first predicate",
			input: "((t.A == s.A) and t.B < s.B)",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "A"), Op: OpEqual, Right: Col("s", "A")},
				{Left: Col("t", "B"), Op: OpLess, Right: Col("s", "B")},
			}},
		},
		{
			name:  "leading parenthesized predicate",
			input: "(t.A == s.A) and t.B < s.B",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "A"), Op: OpEqual, Right: Col("s", "A")},
				{Left: Col("t", "B"), Op: OpLess, Right: Col("s", "B")},
			}},
		},
		{
			name:  "constants",
			input: "!(t.Age < 18 and t.State == 'NY')",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "Age"), Op: OpLess, Right: Operand{Kind: OperandNumber, Literal: "18"}},
				{Left: Col("t", "State"), Op: OpEqual, Right: Operand{Kind: OperandString, Literal: "NY"}},
			}},
		},
		{
			name:  "constant on the left is flipped",
			input: "!(18 > t.Age)",
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "Age"), Op: OpLess, Right: Operand{Kind: OperandNumber, Literal: "18"}},
			}},
		},
		{
			name:  "quoted column",
			input: `!(t."Unit Price" >= s."Unit Price")`,
			want: &DC{Predicates: []Predicate{
				{Left: Col("t", "Unit Price"), Op: OpGreaterEqual, Right: Col("s", "Unit Price")},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "empty", input: "", wantMsg: ErrEmptyConstraint},
		{name: "empty wrapper", input: "!()", wantMsg: ErrEmptyConstraint},
		{name: "missing operator", input: "!(t.A s.A)", wantMsg: "expected comparison operator"},
		{name: "missing column", input: "!(t == s.A)", wantMsg: "unexpected token"},
		{name: "two constants", input: "!(1 < 2)", wantMsg: "compares two constants"},
		{name: "unclosed wrapper", input: "!(t.A == s.A", wantMsg: "unexpected token"},
		{name: "trailing input", input: "!(t.A == s.A) x", wantMsg: "after end of constraint"},
		{name: "unterminated string", input: "!(t.A == 'x)", wantMsg: ErrUnterminatedString},
		{name: "dangling and", input: "!(t.A == s.A and)", wantMsg: "unexpected token"},
		{name: "bang without paren", input: "!t.A == s.A", wantMsg: "unexpected token"},
		{name: "unclosed plain wrapper", input: "(t.A == s.A and t.B < s.B", wantMsg: "unexpected token"},
		{name: "dangling exponent", input: "!(t.A < 1e)", wantMsg: `invalid number "1e"`},
		{name: "number out of range", input: "!(t.A < 1e999)", wantMsg: `invalid number "1e999"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
			assert.Contains(t, perr.Message, tt.wantMsg)
			assert.Contains(t, err.Error(), "parse error at line 1")
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("!(") })
	assert.NotPanics(t, func() { MustParse("!(t.A == s.A)") })
}

func TestDC_StringRoundTrip(t *testing.T) {
	inputs := []string{
		"!(j.Col0 == s.Col0 and t.C <= t.B)",
		"!(t.A != s.A)",
		"!(t.Age < 18 and t.State == 'O''Hare')",
		`!(t."Unit Price" > s."Unit Price")`,
	}

	for _, input := range inputs {
		d := MustParse(input)
		assert.Equal(t, input, d.String())

		again := MustParse(d.String())
		if diff := cmp.Diff(d, again); diff != "" {
			t.Errorf("round trip of %q changed the constraint:\n%s", input, diff)
		}
	}
}
