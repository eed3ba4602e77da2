package dc

import (
	"strings"
	"unicode"
)

// andSymbol is the logical conjunction sign some papers write constraints with.
const andSymbol = "∧"

// Lexer tokenizes denial constraint input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.currentPos()
	tok := Token{Pos: pos}

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		return tok
	case '=':
		// Both "==" and a single "=" mean equality.
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_EQ, Literal: "==", Pos: pos}
		} else {
			tok = Token{Type: TOKEN_EQ, Literal: "=", Pos: pos}
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: TOKEN_LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "<>", Pos: pos}
		default:
			tok = Token{Type: TOKEN_LT, Literal: "<", Pos: pos}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_GE, Literal: ">=", Pos: pos}
		} else {
			tok = Token{Type: TOKEN_GT, Literal: ">", Pos: pos}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "!=", Pos: pos}
		} else {
			tok = Token{Type: TOKEN_NOT, Literal: "!", Pos: pos}
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = Token{Type: TOKEN_AND, Literal: "&&", Pos: pos}
		} else {
			tok = Token{Type: TOKEN_ILLEGAL, Literal: "&", Pos: pos}
		}
	case '.':
		tok = Token{Type: TOKEN_DOT, Literal: ".", Pos: pos}
	case '(':
		tok = Token{Type: TOKEN_LPAREN, Literal: "(", Pos: pos}
	case ')':
		tok = Token{Type: TOKEN_RPAREN, Literal: ")", Pos: pos}
	case '\'':
		lit, ok := l.readDelimited('\'')
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: TOKEN_STRING, Literal: lit, Pos: pos}
	case '"':
		lit, ok := l.readDelimited('"')
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: TOKEN_IDENT, Literal: lit, Pos: pos, Quoted: true}
	case '-':
		if isDigit(l.peekChar()) {
			return Token{Type: TOKEN_NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		tok = Token{Type: TOKEN_ILLEGAL, Literal: "-", Pos: pos}
	default:
		if strings.HasPrefix(l.input[l.pos:], andSymbol) {
			for range len(andSymbol) {
				l.readChar()
			}
			return Token{Type: TOKEN_AND, Literal: andSymbol, Pos: pos}
		}
		if isLetter(l.ch) || l.ch == '_' {
			lit := l.readIdentifier()
			return Token{Type: LookupIdent(strings.ToLower(lit)), Literal: lit, Pos: pos}
		}
		if isDigit(l.ch) {
			return Token{Type: TOKEN_NUMBER, Literal: l.readNumber(), Pos: pos}
		}
		tok = Token{Type: TOKEN_ILLEGAL, Literal: string(l.ch), Pos: pos}
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readDelimited reads a quoted literal. A doubled delimiter is an escaped
// delimiter: 'it''s' -> it's. The second result is false when the input ends
// before the closing delimiter.
func (l *Lexer) readDelimited(delim byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.ch == 0 {
			return result.String(), false
		}
		if l.ch == delim {
			if l.peekChar() == delim {
				result.WriteByte(delim)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific),
// with an optional leading minus sign.
func (l *Lexer) readNumber() string {
	start := l.pos

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return ch < 0x80 && unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with TOKEN_EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return tokens
}
