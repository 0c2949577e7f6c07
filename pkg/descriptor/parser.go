package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Operator precedence levels.
const (
	PrecedenceNone = iota
	PrecedenceEquality
	PrecedenceAdditive
	PrecedenceMultiplicative
	PrecedenceUnary
)

// Parser parses one descriptor line into a Descriptor tree.
type Parser struct {
	text   string
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	errors []*SyntaxError
}

// NewParser creates a new parser for the given descriptor text.
func NewParser(text string) *Parser {
	p := &Parser{
		text:  text,
		lexer: NewLexer(text),
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single descriptor. The text may start with a named
// definition header separated from the body by a tab.
func Parse(text string) (*Descriptor, error) {
	p := NewParser(text)
	d := p.parseLine()
	if len(p.lexer.Errors) > 0 {
		return nil, p.lexer.Errors[0]
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	d.Source = text
	return d, nil
}

// ParseAll parses one descriptor per line. Blank lines and lines starting
// with '#' are skipped. Errors are wrapped in a *LineError.
func ParseAll(r io.Reader) ([]*Descriptor, error) {
	var result []*Descriptor
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		d, err := Parse(strings.TrimLeft(line, " "))
		if err != nil {
			return nil, &LineError{Line: lineNo, Err: err}
		}
		result = append(result, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read descriptors: %w", err)
	}
	return result, nil
}

// IsSyntaxError reports whether err is or wraps a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
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
	p.addError(ErrUnexpectedToken, p.token.Type, t)
	return false
}

func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, NewSyntaxError(p.text, p.token.Pos, format, args...))
}

// ---------- Lines ----------

// parseLine parses an optional definition header followed by an expression.
func (p *Parser) parseLine() *Descriptor {
	var (
		name      string
		params    []string
		hasParams bool
	)

	if strings.ContainsRune(p.text, '\t') {
		name, params, hasParams = p.parseHeader()
		if len(p.errors) > 0 {
			return &Descriptor{}
		}
	}

	if p.check(TOKEN_EOF) {
		p.addError(ErrEmptyExpression)
		return &Descriptor{}
	}

	d := p.parseExpression()
	if d == nil {
		return &Descriptor{}
	}
	if !p.check(TOKEN_EOF) {
		p.addError(ErrUnexpectedTrailing, p.token.Type)
	}

	d.DefName = name
	d.Params = params
	d.HasParams = hasParams
	return d
}

// parseHeader parses "Name<TAB>" or "Name(X,Y)<TAB>".
func (p *Parser) parseHeader() (string, []string, bool) {
	if !p.check(TOKEN_IDENT) {
		p.addError(ErrUnexpectedToken, p.token.Type, TOKEN_IDENT)
		return "", nil, false
	}
	name := p.token.Literal
	p.nextToken()

	var params []string
	hasParams := false
	if p.match(TOKEN_LPAREN) {
		hasParams = true
		seen := make(map[string]struct{})
		for !p.check(TOKEN_RPAREN) {
			if !p.check(TOKEN_IDENT) {
				p.addError(ErrBadParam, p.token.Type)
				return "", nil, false
			}
			if _, dup := seen[p.token.Literal]; dup {
				p.addError(ErrDuplicateParam, p.token.Literal)
				return "", nil, false
			}
			seen[p.token.Literal] = struct{}{}
			params = append(params, p.token.Literal)
			p.nextToken()
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		if !p.expect(TOKEN_RPAREN) {
			return "", nil, false
		}
	}

	if !p.expect(TOKEN_TAB) {
		return "", nil, false
	}
	return name, params, hasParams
}

// ---------- Expressions ----------

func (p *Parser) parseExpression() *Descriptor {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

// parseExpressionWithPrecedence implements precedence climbing. Parsing the
// right operand at prec+1 makes every binary operator left-associative.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) *Descriptor {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec == PrecedenceNone || prec < minPrecedence {
			break
		}

		op := p.token
		p.nextToken()

		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		left = &Descriptor{
			Kind: KindOperator,
			Pos:  op.Pos,
			Name: op.Literal,
			Args: []*Descriptor{left, right},
		}
	}

	return left
}

func infixPrecedence(t TokenType) int {
	switch t {
	case TOKEN_EQ:
		return PrecedenceEquality
	case TOKEN_PLUS, TOKEN_MINUS:
		return PrecedenceAdditive
	case TOKEN_STAR, TOKEN_SLASH:
		return PrecedenceMultiplicative
	default:
		return PrecedenceNone
	}
}

// parsePrefixExpr parses unary minus and primary expressions. A minus
// directly before a numeric literal is folded into the literal.
func (p *Parser) parsePrefixExpr() *Descriptor {
	if !p.check(TOKEN_MINUS) {
		return p.parsePrimary()
	}

	pos := p.token.Pos
	p.nextToken()
	operand := p.parseExpressionWithPrecedence(PrecedenceUnary)
	if operand == nil {
		return nil
	}
	switch operand.Kind {
	case KindInt:
		operand.Int = -operand.Int
		return operand
	case KindDouble:
		operand.Double = -operand.Double
		return operand
	}
	zero := &Descriptor{Kind: KindInt, Pos: pos}
	return &Descriptor{Kind: KindOperator, Pos: pos, Name: "-", Args: []*Descriptor{zero, operand}}
}

func (p *Parser) parsePrimary() *Descriptor {
	tok := p.token

	switch tok.Type {
	case TOKEN_INT:
		p.nextToken()
		v, err := strconv.Atoi(tok.Literal)
		if err != nil {
			p.errors = append(p.errors, NewSyntaxError(p.text, tok.Pos, ErrInvalidNumber, tok.Literal))
			return nil
		}
		return &Descriptor{Kind: KindInt, Pos: tok.Pos, Int: v}

	case TOKEN_DOUBLE:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errors = append(p.errors, NewSyntaxError(p.text, tok.Pos, ErrInvalidNumber, tok.Literal))
			return nil
		}
		return &Descriptor{Kind: KindDouble, Pos: tok.Pos, Double: v}

	case TOKEN_STRING:
		p.nextToken()
		return &Descriptor{Kind: KindString, Pos: tok.Pos, Str: tok.Literal}

	case TOKEN_TRUE, TOKEN_FALSE:
		p.nextToken()
		return &Descriptor{Kind: KindBool, Pos: tok.Pos, Bool: tok.Type == TOKEN_TRUE}

	case TOKEN_IDENT:
		p.nextToken()
		return p.parseCall(tok)

	case TOKEN_LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return expr

	case TOKEN_ILLEGAL:
		p.addError(ErrIllegalChar, tok.Literal)
		return nil

	default:
		p.addError(ErrUnexpectedToken, tok.Type, "expression")
		return nil
	}
}

// parseCall parses a function call whose name has already been consumed.
func (p *Parser) parseCall(name Token) *Descriptor {
	call := &Descriptor{Kind: KindCall, Pos: name.Pos, Name: name.Literal}
	if !p.match(TOKEN_LPAREN) {
		return call
	}
	call.Parens = true

	if p.match(TOKEN_RPAREN) {
		return call
	}

	for {
		arg := p.parseExpression()
		if arg == nil {
			return nil
		}
		call.Args = append(call.Args, arg)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	if !p.expect(TOKEN_RPAREN) {
		return nil
	}
	return call
}
