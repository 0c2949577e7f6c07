package descriptor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes feature descriptor text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Errors collected while lexing (unterminated strings)
	Errors []*SyntaxError
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
	var tok Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		tok.Literal = ""
		return tok
	case '\t':
		tok = l.newToken(TOKEN_TAB, "\t")
	case '+':
		tok = l.newToken(TOKEN_PLUS, "+")
	case '-':
		tok = l.newToken(TOKEN_MINUS, "-")
	case '*':
		tok = l.newToken(TOKEN_STAR, "*")
	case '/':
		tok = l.newToken(TOKEN_SLASH, "/")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(TOKEN_ILLEGAL, "=")
		}
	case ',':
		tok = l.newToken(TOKEN_COMMA, ",")
	case '(':
		tok = l.newToken(TOKEN_LPAREN, "(")
	case ')':
		tok = l.newToken(TOKEN_RPAREN, ")")
	case '"', '\'':
		tok.Type = TOKEN_STRING
		tok.Literal = l.readString(l.ch, pos)
		return tok
	default:
		switch {
		case isIdentStart(l.currentRune()):
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		case isDigit(l.ch):
			tok.Literal, tok.Type = l.readNumber()
			return tok
		default:
			tok = l.newToken(TOKEN_ILLEGAL, string(l.ch))
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, literal string) Token {
	return Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespace skips spaces and line breaks. Tabs are significant.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString reads a quoted string literal. Backslash escapes the next char.
func (l *Lexer) readString(quote byte, start Position) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch l.ch {
		case 0:
			l.Errors = append(l.Errors, &SyntaxError{Pos: start, Text: l.input, Message: ErrUnterminatedString})
			return result.String()
		case quote:
			l.readChar() // skip closing quote
			return result.String()
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 0:
				continue
			default:
				result.WriteByte(l.ch)
			}
			l.readChar()
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for {
		r, size := l.currentRune(), l.runeSize()
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		for range size {
			l.readChar()
		}
		// columns count runes
		l.col -= size - 1
	}
	return l.input[start:l.pos]
}

// readNumber reads an integer or double literal. A '.' followed by a digit
// makes the literal a double.
func (l *Lexer) readNumber() (string, TokenType) {
	start := l.pos
	typ := TOKEN_INT

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		typ = TOKEN_DOUBLE
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos], typ
}

// currentRune decodes the UTF-8 rune starting at the current position.
func (l *Lexer) currentRune() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) runeSize() int {
	if l.pos >= len(l.input) {
		return 1
	}
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	return size
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input.
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
