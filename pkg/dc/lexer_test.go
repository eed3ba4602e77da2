package dc

import (
	"testing"
)

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "negated conjunction",
			input: "!(t.A == s.A and t.B <= s.B)",
			want: []TokenType{
				TOKEN_NOT, TOKEN_LPAREN,
				TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT, TOKEN_EQ, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT,
				TOKEN_AND,
				TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT, TOKEN_LE, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT,
				TOKEN_RPAREN, TOKEN_EOF,
			},
		},
		{
			name:  "operator aliases",
			input: "= == != <> < <= > >=",
			want: []TokenType{
				TOKEN_EQ, TOKEN_EQ, TOKEN_NE, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE, TOKEN_EOF,
			},
		},
		{
			name:  "conjunction spellings",
			input: "and AND && ∧",
			want:  []TokenType{TOKEN_AND, TOKEN_AND, TOKEN_AND, TOKEN_AND, TOKEN_EOF},
		},
		{
			name:  "literals",
			input: `42 -3.5 1e10 'NY' "Unit Price"`,
			want:  []TokenType{TOKEN_NUMBER, TOKEN_NUMBER, TOKEN_NUMBER, TOKEN_STRING, TOKEN_IDENT, TOKEN_EOF},
		},
		{
			name:  "illegal characters",
			input: "& - #",
			want:  []TokenType{TOKEN_ILLEGAL, TOKEN_ILLEGAL, TOKEN_ILLEGAL, TOKEN_EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			if len(tokens) != len(tt.want) {
				t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(tt.want), tokens)
			}
			for i, tok := range tokens {
				if tok.Type != tt.want[i] {
					t.Errorf("token %d: got %s (%q), want %s", i, tok.Type, tok.Literal, tt.want[i])
				}
			}
		})
	}
}

func TestLexer_Literals(t *testing.T) {
	tokens := Tokenize(`'it''s' "col""x" -12`)

	if tokens[0].Literal != "it's" {
		t.Errorf("string literal = %q, want %q", tokens[0].Literal, "it's")
	}
	if tokens[1].Literal != `col"x` || !tokens[1].Quoted {
		t.Errorf("quoted identifier = %q (quoted=%v), want %q", tokens[1].Literal, tokens[1].Quoted, `col"x`)
	}
	if tokens[2].Literal != "-12" {
		t.Errorf("number literal = %q, want %q", tokens[2].Literal, "-12")
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens := Tokenize("!(t.A\n== s.A)")

	eq := tokens[5]
	if eq.Type != TOKEN_EQ {
		t.Fatalf("expected == at index 5, got %s", eq.Type)
	}
	if eq.Pos.Line != 2 || eq.Pos.Column != 1 {
		t.Errorf("== position = %d:%d, want 2:1", eq.Pos.Line, eq.Pos.Column)
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	tokens := Tokenize("'abc")
	if tokens[0].Type != TOKEN_ILLEGAL {
		t.Errorf("unterminated string should be ILLEGAL, got %s", tokens[0].Type)
	}
}
