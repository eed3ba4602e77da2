package dc

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS to match the lexer conventions used elsewhere
const (
	// TOKEN_EOF represents end of input.
	TOKEN_EOF TokenType = iota
	// TOKEN_ILLEGAL represents an illegal/unrecognized token.
	TOKEN_ILLEGAL

	TOKEN_IDENT  // t, Col0, "Unit Price"
	TOKEN_NUMBER // 123, -4.5, 1e10
	TOKEN_STRING // 'hello'

	TOKEN_EQ     // == or =
	TOKEN_NE     // != or <>
	TOKEN_LT     // <
	TOKEN_GT     // >
	TOKEN_LE     // <=
	TOKEN_GE     // >=
	TOKEN_DOT    // .
	TOKEN_NOT    // !
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )
	TOKEN_AND    // and, AND, &&, ∧
)

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	// Quoted is set for double-quoted identifiers so they are never read as keywords.
	Quoted bool
}

// Position represents a location in the constraint text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",

	TOKEN_IDENT:  "IDENT",
	TOKEN_NUMBER: "NUMBER",
	TOKEN_STRING: "STRING",

	TOKEN_EQ:     "==",
	TOKEN_NE:     "!=",
	TOKEN_LT:     "<",
	TOKEN_GT:     ">",
	TOKEN_LE:     "<=",
	TOKEN_GE:     ">=",
	TOKEN_DOT:    ".",
	TOKEN_NOT:    "!",
	TOKEN_LPAREN: "(",
	TOKEN_RPAREN: ")",
	TOKEN_AND:    "AND",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"and": TOKEN_AND,
}

// LookupIdent returns the keyword token type for ident, or TOKEN_IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// isOperator reports whether the token is a comparison operator.
func (t TokenType) isOperator() bool {
	switch t {
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return true
	}
	return false
}
