package descriptor

import "fmt"

// SyntaxError reports a malformed feature descriptor. Text holds the full
// offending descriptor so that callers reading many lines can identify it.
type SyntaxError struct {
	Pos     Position
	Text    string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("syntax error at column %d: %s", e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("syntax error at column %d in %q: %s", e.Pos.Column, e.Text, e.Message)
}

// NewSyntaxError creates a syntax error for the given descriptor text.
func NewSyntaxError(text string, pos Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Text: text, Message: fmt.Sprintf(format, args...)}
}

// LineError wraps an error with the line number it occurred on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrUnexpectedTrailing = "unexpected %s after end of expression"
	ErrUnterminatedString = "unterminated string literal"
	ErrInvalidNumber      = "invalid number literal %q"
	ErrIllegalChar        = "illegal character %q"
	ErrEmptyExpression    = "empty expression"
	ErrBadParam           = "macro parameter must be an identifier, got %s"
	ErrDuplicateParam     = "duplicate macro parameter %q"
)
