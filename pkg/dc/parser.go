// Package dc parses and models denial constraints.
//
// A denial constraint states that a conjunction of comparisons must never
// hold for any combination of distinct rows:
//
//	!(t.Zip == s.Zip and t.City != s.City)
//
// # Grammar
//
//	dc        → ["!"] "(" conj ")" | conj
//	conj      → predicate { ("and" | "&&" | "∧") predicate }
//	predicate → "(" predicate ")" | operand op operand
//	operand   → IDENT "." IDENT | NUMBER | STRING
//	op        → "==" | "=" | "!=" | "<>" | "<" | "<=" | ">" | ">="
//
// Tuple variables (t, s, j...) are arbitrary identifiers. Column names that
// are not plain identifiers can be double-quoted: t."Unit Price". At least one
// side of every predicate must be a column; a constant on the left side is
// moved to the right.
package dc

import (
	"fmt"
	"math"
	"strconv"
)

// Parser parses denial constraint text into a DC.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given constraint text.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a denial constraint.
func Parse(input string) (*DC, error) {
	p := NewParser(input)
	d := p.parseConstraint()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return d, nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string) *DC {
	d, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return d
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// describe renders a token for error messages.
func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_IDENT, TOKEN_NUMBER, TOKEN_STRING, TOKEN_ILLEGAL:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	default:
		return fmt.Sprintf("%q", tok.Literal)
	}
}

// ---------- Grammar ----------

func (p *Parser) parseConstraint() *DC {
	negated := p.match(TOKEN_NOT)
	if negated {
		if !p.expect(TOKEN_LPAREN) {
			return &DC{}
		}
		return p.parseConjunction(true)
	}
	if !p.check(TOKEN_LPAREN) {
		return p.parseConjunction(false)
	}

	// Without "!", a leading "(" either wraps the whole conjunction or opens
	// the first predicate. Try the wrapper first on a fresh parser.
	outer := NewParser(p.lexer.input)
	outer.nextToken()
	if d := outer.parseConjunction(true); len(outer.errors) == 0 {
		return d
	}
	d := p.parseConjunction(false)
	// Report whichever reading got further into the input.
	if len(p.errors) > 0 && errorOffset(outer.errors[0]) > errorOffset(p.errors[0]) {
		p.errors = outer.errors
	}
	return d
}

func errorOffset(err error) int {
	if perr, ok := err.(*ParseError); ok {
		return perr.Pos.Offset
	}
	return -1
}

// parseConjunction parses predicates joined by "and". When wrapped, the
// opening "(" has been consumed and a matching ")" must close the list.
func (p *Parser) parseConjunction(wrapped bool) *DC {
	d := &DC{}

	if wrapped && p.check(TOKEN_RPAREN) {
		p.addError(ErrEmptyConstraint)
		return d
	}
	if p.check(TOKEN_EOF) {
		p.addError(ErrEmptyConstraint)
		return d
	}

	for {
		pred, ok := p.parsePredicate()
		if !ok {
			return d
		}
		d.Predicates = append(d.Predicates, pred)
		if !p.match(TOKEN_AND) {
			break
		}
	}

	if wrapped && !p.expect(TOKEN_RPAREN) {
		return d
	}
	if !p.check(TOKEN_EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.describe(p.token)))
	}
	return d
}

func (p *Parser) parsePredicate() (Predicate, bool) {
	if p.match(TOKEN_LPAREN) {
		pred, ok := p.parsePredicate()
		if !ok || !p.expect(TOKEN_RPAREN) {
			return Predicate{}, false
		}
		return pred, true
	}

	startPos := p.token.Pos
	left, ok := p.parseOperand()
	if !ok {
		return Predicate{}, false
	}

	if !p.token.Type.isOperator() {
		p.addError(fmt.Sprintf(ErrExpectedOperator, p.describe(p.token)))
		return Predicate{}, false
	}
	op := operatorForToken(p.token.Type)
	p.nextToken()

	right, ok := p.parseOperand()
	if !ok {
		return Predicate{}, false
	}

	switch {
	case left.IsColumn():
		return Predicate{Left: left, Op: op, Right: right}, true
	case right.IsColumn():
		return Predicate{Left: right, Op: op.Symmetric(), Right: left}, true
	default:
		p.errors = append(p.errors, &ParseError{
			Pos:     startPos,
			Message: fmt.Sprintf("predicate %s %s %s compares two constants", left, op, right),
		})
		return Predicate{}, false
	}
}

func (p *Parser) parseOperand() (Operand, bool) {
	switch p.token.Type {
	case TOKEN_NUMBER:
		f, err := strconv.ParseFloat(p.token.Literal, 64)
		if err != nil || math.IsInf(f, 0) {
			p.addError(fmt.Sprintf(ErrInvalidNumber, p.token.Literal))
			return Operand{}, false
		}
		o := Operand{Kind: OperandNumber, Literal: p.token.Literal}
		p.nextToken()
		return o, true
	case TOKEN_STRING:
		o := Operand{Kind: OperandString, Literal: p.token.Literal}
		p.nextToken()
		return o, true
	case TOKEN_IDENT:
		v := p.token.Literal
		p.nextToken()
		if !p.expect(TOKEN_DOT) {
			return Operand{}, false
		}
		namedAnd := p.check(TOKEN_AND) && isLetter(p.token.Literal[0])
		if !p.check(TOKEN_IDENT) && !namedAnd {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "column name"))
			return Operand{}, false
		}
		// A column may be named "and"; after the dot it cannot be a conjunction.
		col := p.token.Literal
		p.nextToken()
		return Col(v, col), true
	case TOKEN_ILLEGAL:
		if p.lexerStoppedInQuote() {
			p.addError(ErrUnterminatedString)
		} else {
			p.addError(fmt.Sprintf("illegal character %q", p.token.Literal))
		}
		return Operand{}, false
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "column reference or constant"))
		return Operand{}, false
	}
}

// lexerStoppedInQuote reports whether the current illegal token came from an
// unterminated quoted literal.
func (p *Parser) lexerStoppedInQuote() bool {
	off := p.token.Pos.Offset
	if off < 0 || off >= len(p.lexer.input) {
		return false
	}
	c := p.lexer.input[off]
	return c == '\'' || c == '"'
}
