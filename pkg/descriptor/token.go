package descriptor

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter, descriptor.TokenType mirrors the SQL lexer naming
type TokenType int

//nolint:revive // TOKEN_* names follow the lexer convention used across the codebase
const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_IDENT  // Word, PosTag, X
	TOKEN_INT    // 12
	TOKEN_DOUBLE // 12.5
	TOKEN_STRING // "ponct" or 'ponct'
	TOKEN_TRUE   // true
	TOKEN_FALSE  // false

	// Operators
	TOKEN_PLUS  // +
	TOKEN_MINUS // -
	TOKEN_STAR  // *
	TOKEN_SLASH // /
	TOKEN_EQ    // ==

	// Delimiters
	TOKEN_COMMA  // ,
	TOKEN_LPAREN // (
	TOKEN_RPAREN // )
	TOKEN_TAB    // separates a named descriptor from its body
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_INT:     "INT",
	TOKEN_DOUBLE:  "DOUBLE",
	TOKEN_STRING:  "STRING",
	TOKEN_TRUE:    "true",
	TOKEN_FALSE:   "false",
	TOKEN_PLUS:    "+",
	TOKEN_MINUS:   "-",
	TOKEN_STAR:    "*",
	TOKEN_SLASH:   "/",
	TOKEN_EQ:      "==",
	TOKEN_COMMA:   ",",
	TOKEN_LPAREN:  "(",
	TOKEN_RPAREN:  ")",
	TOKEN_TAB:     "TAB",
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// Position is a location in descriptor text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

// Token is a lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// keywords maps reserved identifiers to their token types.
var keywords = map[string]TokenType{
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
}

// LookupIdent returns the keyword token type for ident, or TOKEN_IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}
