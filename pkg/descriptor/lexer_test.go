package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Tokens(t *testing.T) {
	input := "Name(X,Y)\tX+Y*2.5==\"a\\\"b\"-true/3"

	expected := []struct {
		typ TokenType
		lit string
	}{
		{TOKEN_IDENT, "Name"},
		{TOKEN_LPAREN, "("},
		{TOKEN_IDENT, "X"},
		{TOKEN_COMMA, ","},
		{TOKEN_IDENT, "Y"},
		{TOKEN_RPAREN, ")"},
		{TOKEN_TAB, "\t"},
		{TOKEN_IDENT, "X"},
		{TOKEN_PLUS, "+"},
		{TOKEN_IDENT, "Y"},
		{TOKEN_STAR, "*"},
		{TOKEN_DOUBLE, "2.5"},
		{TOKEN_EQ, "=="},
		{TOKEN_STRING, `a"b`},
		{TOKEN_MINUS, "-"},
		{TOKEN_TRUE, "true"},
		{TOKEN_SLASH, "/"},
		{TOKEN_INT, "3"},
		{TOKEN_EOF, ""},
	}

	tokens := Tokenize(input)
	require.Len(t, tokens, len(expected), "wrong number of tokens")

	for i, exp := range expected {
		assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
		assert.Equal(t, exp.lit, tokens[i].Literal, "token[%d] literal", i)
	}
}

func TestLexer_NumberForms(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"12", TOKEN_INT, "12"},
		{"12.0", TOKEN_DOUBLE, "12.0"},
		{"0.25", TOKEN_DOUBLE, "0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			assert.Equal(t, tt.typ, tok.Type)
			assert.Equal(t, tt.lit, tok.Literal)
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens := Tokenize("a + bc")
	require.Len(t, tokens, 4)
	assert.Equal(t, 1, tokens[0].Pos.Column)
	assert.Equal(t, 3, tokens[1].Pos.Column)
	assert.Equal(t, 5, tokens[2].Pos.Column)
	assert.Equal(t, 4, tokens[2].Pos.Offset)
}

func TestLexer_UnicodeIdentifiers(t *testing.T) {
	tokens := Tokenize("Café+été_2")
	require.Len(t, tokens, 4)
	assert.Equal(t, TOKEN_IDENT, tokens[0].Type)
	assert.Equal(t, "Café", tokens[0].Literal)
	assert.Equal(t, TOKEN_PLUS, tokens[1].Type)
	assert.Equal(t, 5, tokens[1].Pos.Column)
	assert.Equal(t, 5, tokens[1].Pos.Offset)
	assert.Equal(t, "été_2", tokens[2].Literal)

	d, err := Parse("Café")
	require.NoError(t, err)
	assert.Equal(t, "Café", d.String())
}

func TestLexer_UnterminatedString(t *testing.T) {
	l := NewLexer(`"abc`)
	tok := l.NextToken()
	assert.Equal(t, TOKEN_STRING, tok.Type)
	require.Len(t, l.Errors, 1)
	assert.Equal(t, ErrUnterminatedString, l.Errors[0].Message)
}
